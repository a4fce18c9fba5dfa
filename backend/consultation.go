package backend

import (
	"context"
	"fmt"
	"net/http"

	"plancosmique/models"
)

// CreateConsultation creates a consultation record and returns its
// backend-assigned identifier. The call is issued once; retries are the
// caller's explicit responsibility.
func (c *Client) CreateConsultation(ctx context.Context, payload models.CreateConsultationPayload, idempotencyKey string) (string, error) {
	var created struct {
		ID             string `json:"id"`
		ConsultationID string `json:"consultationId"`
	}
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	if err := c.doJSON(ctx, http.MethodPost, "/api/consultations", headers, payload, &created); err != nil {
		return "", err
	}
	id := created.ID
	if id == "" {
		id = created.ConsultationID
	}
	if id == "" {
		return "", fmt.Errorf("consultation created without an identifier")
	}
	return id, nil
}

// FetchConsultation retrieves a consultation and normalizes the backend's
// heterogeneous field names at this boundary.
func (c *Client) FetchConsultation(ctx context.Context, id string) (*models.Consultation, error) {
	var raw models.ConsultationRaw
	if err := c.doJSON(ctx, http.MethodGet, "/api/consultations/"+id, nil, nil, &raw); err != nil {
		return nil, err
	}
	consultation := models.NormalizeConsultation(raw)
	if consultation.ID == "" {
		consultation.ID = id
	}
	return &consultation, nil
}

// UpdateConsultationStatus transitions a consultation's status, recording the
// payment method when it flips to paid.
func (c *Client) UpdateConsultationStatus(ctx context.Context, id, status, paymentMethod string) error {
	body := map[string]string{"status": status}
	if paymentMethod != "" {
		body["paymentMethod"] = paymentMethod
	}
	return c.doJSON(ctx, http.MethodPatch, "/api/consultations/"+id+"/status", nil, body, nil)
}
