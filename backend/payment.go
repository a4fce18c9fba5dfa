package backend

import (
	"context"
	"net/http"
	"net/url"

	"plancosmique/models"
)

// VerifyPayment checks an external payment token against the gateway. Status
// comes back as free text; normalization into the closed enum happens in
// services/payment.
func (c *Client) VerifyPayment(ctx context.Context, token string) (*models.VerifyPaymentResult, error) {
	var result models.VerifyPaymentResult
	path := "/api/payments/verify?token=" + url.QueryEscape(token)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessConsultationPayment posts a verified payment for consultation-side
// processing. A failure whose message says the token was already processed is
// interpreted upstream as a benign duplicate, not here.
func (c *Client) ProcessConsultationPayment(ctx context.Context, token string, record models.PaymentRecord) (*models.ProcessPaymentResult, error) {
	body := struct {
		Token   string               `json:"token"`
		Payment models.PaymentRecord `json:"payment"`
	}{Token: token, Payment: record}

	var result models.ProcessPaymentResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/payments/process-consultation", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
