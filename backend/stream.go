package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// OpenAnalysisProgressStream opens the SSE stream of analysis progress for a
// consultation and returns its body. The caller owns the body and must close
// it; line parsing and reconnection live in services/analysis.
func (c *Client) OpenAnalysisProgressStream(ctx context.Context, consultationID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/consultations/"+consultationID+"/progress", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// Streaming requests must not inherit the client-wide timeout.
	streaming := *c.httpClient
	streaming.Timeout = 0

	resp, err := streaming.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &apiError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return resp.Body, nil
}
