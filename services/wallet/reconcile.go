package wallet

import "plancosmique/models"

// Reconcile checks a required-offering set against the user's wallet
// balances. Deficits are reported in required order so the UI renders them
// deterministically. Read-only and safe to call repeatedly.
func Reconcile(required []models.RequiredOffering, wallet []models.WalletOffering) models.Reconciliation {
	balances := make(map[string]int, len(wallet))
	for _, w := range wallet {
		balances[w.OfferingID] += w.Quantity
	}

	result := models.Reconciliation{HasAll: true}
	for _, req := range required {
		available := balances[req.OfferingID]
		if available < req.Quantity {
			result.HasAll = false
			result.Missing = append(result.Missing, models.OfferingDeficit{
				OfferingID: req.OfferingID,
				Needed:     req.Quantity,
				Available:  available,
			})
		}
	}
	return result
}
