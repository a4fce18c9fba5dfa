package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"plancosmique/backend"
	"plancosmique/models"

	"go.uber.org/zap"
)

const (
	defaultBaseDelay     = 2 * time.Second
	defaultMaxReconnects = 5
)

// StreamClient consumes a consultation's analysis progress stream. One
// subscription maps to at most one live connection; the fulfillment
// orchestrator guarantees a single subscription per consultation.
type StreamClient struct {
	Opener backend.AnalysisStreamOpener
	Logger *zap.Logger

	// BaseDelay and MaxReconnects default to 2s and 5. Reconnect delays are
	// linear: attempt number times BaseDelay.
	BaseDelay     time.Duration
	MaxReconnects int
}

func NewStreamClient(opener backend.AnalysisStreamOpener, logger *zap.Logger) *StreamClient {
	return &StreamClient{
		Opener:        opener,
		Logger:        logger,
		BaseDelay:     defaultBaseDelay,
		MaxReconnects: defaultMaxReconnects,
	}
}

// Subscribe opens the stream for consultationID and forwards each parsed
// event to onEvent. Transport errors go to onError and trigger a bounded
// reconnect; after MaxReconnects failed attempts the subscription goes
// silent, leaving the last delivered progress on display. A completed=true
// event closes the stream for good.
//
// The returned function cancels the subscription: it closes any open
// connection and stops any pending reconnect timer. It must be called on
// consultation change or teardown so connections never leak across
// consultations.
func (c *StreamClient) Subscribe(consultationID string, onEvent func(models.AnalysisProgressEvent), onError func(error)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(context.Background())

	var completed atomic.Bool
	go c.consume(ctx, consultationID, &completed, onEvent, onError)

	return cancel
}

func (c *StreamClient) consume(ctx context.Context, consultationID string, completed *atomic.Bool, onEvent func(models.AnalysisProgressEvent), onError func(error)) {
	baseDelay := c.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxReconnects := c.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = defaultMaxReconnects
	}

	attempt := 0
	for {
		err := c.readStream(ctx, consultationID, completed, onEvent)
		if completed.Load() || ctx.Err() != nil {
			return
		}

		if onError != nil {
			onError(err)
		}

		attempt++
		if attempt > maxReconnects {
			c.Logger.Warn("analysis stream gave up after max reconnect attempts",
				zap.String("consultationId", consultationID),
				zap.Int("attempts", maxReconnects))
			return
		}

		delay := time.Duration(attempt) * baseDelay
		c.Logger.Info("analysis stream reconnecting",
			zap.String("consultationId", consultationID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if completed.Load() {
			return
		}
	}
}

// readStream opens one connection and pumps events until the stream ends,
// errors, completes, or the subscription is cancelled.
func (c *StreamClient) readStream(ctx context.Context, consultationID string, completed *atomic.Bool, onEvent func(models.AnalysisProgressEvent)) error {
	body, err := c.Opener.OpenAnalysisProgressStream(ctx, consultationID)
	if err != nil {
		return err
	}
	defer body.Close()

	// Close the body when the subscription is cancelled so the scanner
	// unblocks even mid-read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 16*1024)
	scanner.Buffer(buf, 256*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event models.AnalysisProgressEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			c.Logger.Warn("dropping unparseable progress event",
				zap.String("consultationId", consultationID),
				zap.Error(err))
			continue
		}
		if event.ConsultationID == "" {
			event.ConsultationID = consultationID
		}

		onEvent(event)

		if event.Completed {
			completed.Store(true)
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}
	return fmt.Errorf("analysis stream closed before completion")
}
