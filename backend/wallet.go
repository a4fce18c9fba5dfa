package backend

import (
	"context"
	"net/http"

	"plancosmique/models"
)

// FetchWalletOfferings returns the user's current offering balances. The
// ledger is authoritative server-side; callers must re-fetch after any
// consumption instead of decrementing locally.
func (c *Client) FetchWalletOfferings(ctx context.Context, userID string) ([]models.WalletOffering, error) {
	var wallet struct {
		Offerings []models.WalletOffering `json:"offerings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/wallet/"+userID+"/offerings", nil, nil, &wallet); err != nil {
		return nil, err
	}
	return wallet.Offerings, nil
}

// ConsumeOfferings atomically debits the wallet for the given offerings on
// behalf of a consultation. Insufficient balance at commit time fails the
// whole debit; the race with concurrent flows is resolved server-side.
func (c *Client) ConsumeOfferings(ctx context.Context, consultationID string, offerings []models.RequiredOffering) error {
	body := map[string]any{
		"consultationId": consultationID,
		"offerings":      offerings,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/wallet/consume", nil, body, nil)
}
