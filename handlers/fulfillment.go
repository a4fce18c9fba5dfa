package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plancosmique/services/consultation"
	"plancosmique/services/fulfillment"
	"plancosmique/utils"
)

// FulfillmentService and ConsultationService are wired in main before the
// routes are registered.
var FulfillmentService fulfillment.OrchestratorService
var ConsultationService consultation.ProvisionerService

// GetConsultation returns the consultation projection (title, offering
// alternatives, status) for display.
func GetConsultation(c *gin.Context) {
	result, err := ConsultationService.Fetch(c.Request.Context(), c.Param("consultationID"))
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StartFulfillmentSession opens a fulfillment session for a catalog choice.
func StartFulfillmentSession(c *gin.Context) {
	userID := c.GetString("userID")
	var input struct {
		ChoiceID   string                 `json:"choiceId"`
		CategoryID string                 `json:"categoryId"`
		Profile    *consultation.FormData `json:"profile,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	session, err := FulfillmentService.StartSession(c.Request.Context(), userID, input.ChoiceID, input.CategoryID, input.Profile)
	if err != nil {
		respondFlowError(c, err)
		return
	}

	snapshot, err := FulfillmentService.Snapshot(c.Request.Context(), session.SessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionID": session.SessionID, "snapshot": snapshot})
}

// SubmitFulfillmentForm records the birth data and provisions the consultation.
func SubmitFulfillmentForm(c *gin.Context) {
	sessionID := c.Param("sessionID")
	var form consultation.FormData
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	session, err := FulfillmentService.SubmitForm(c.Request.Context(), sessionID, form)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	respondSnapshot(c, session.SessionID)
}

// ConfirmFulfillmentOffering triggers the atomic offering consumption.
func ConfirmFulfillmentOffering(c *gin.Context) {
	sessionID := c.Param("sessionID")
	session, err := FulfillmentService.ConfirmOffering(c.Request.Context(), sessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	respondSnapshot(c, session.SessionID)
}

// FulfillmentMarketplaceHandoff records that the user left for the external
// marketplace to acquire the missing offerings.
func FulfillmentMarketplaceHandoff(c *gin.Context) {
	sessionID := c.Param("sessionID")
	session, err := FulfillmentService.MarketplaceHandoffFor(c.Request.Context(), sessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	respondSnapshot(c, session.SessionID)
}

// FulfillmentPaymentCallback is the landing endpoint after an external
// payment: it runs the verify/process workflow for the returned token.
func FulfillmentPaymentCallback(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	result, err := FulfillmentService.HandlePaymentCallback(c.Request.Context(), input.SessionID, input.Token)
	if err != nil {
		respondFlowError(c, err)
		return
	}

	snapshot, err := FulfillmentService.Snapshot(c.Request.Context(), input.SessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": result, "snapshot": snapshot})
}

// ResetFulfillmentError clears the error overlay and returns to the form
// step so the user can resubmit.
func ResetFulfillmentError(c *gin.Context) {
	sessionID := c.Param("sessionID")
	session, err := FulfillmentService.ResetError(c.Request.Context(), sessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	respondSnapshot(c, session.SessionID)
}

// GetFulfillmentSession returns the current hook-shaped snapshot.
func GetFulfillmentSession(c *gin.Context) {
	respondSnapshot(c, c.Param("sessionID"))
}

// FulfillmentProgressStream relays analysis progress as server-sent events.
// One snapshot per tick; the stream ends when the flow reaches a state the
// client should leave on, or when the client disconnects.
func FulfillmentProgressStream(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if _, err := FulfillmentService.Snapshot(c.Request.Context(), sessionID); err != nil {
		respondFlowError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		snapshot, err := FulfillmentService.Snapshot(c.Request.Context(), sessionID)
		if err != nil {
			return
		}
		c.SSEvent("snapshot", snapshot)
		c.Writer.Flush()
		if snapshot.ShouldAutoRedirect || snapshot.Status == "error" {
			return
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// TeardownFulfillmentSession cancels timers and drops the session.
func TeardownFulfillmentSession(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if err := FulfillmentService.Teardown(c.Request.Context(), sessionID); err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session terminée"})
}

func respondSnapshot(c *gin.Context, sessionID string) {
	snapshot, err := FulfillmentService.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		respondFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionID": sessionID, "snapshot": snapshot})
}

// respondFlowError maps service errors onto HTTP statuses. Backend messages
// already travel verbatim inside the error, so only the status varies.
func respondFlowError(c *gin.Context, err error) {
	var flowErr *fulfillment.FlowError
	if errors.As(err, &flowErr) {
		status := http.StatusInternalServerError
		switch flowErr.Code {
		case fulfillment.CodeSessionNotFound:
			status = http.StatusNotFound
		case fulfillment.CodeInput:
			status = http.StatusBadRequest
		case fulfillment.CodeConflict:
			status = http.StatusConflict
		case fulfillment.CodeWallet, fulfillment.CodeConsume:
			status = http.StatusPaymentRequired
		}
		utils.JSONError(c, status, flowErr.Message, flowErr.Code)
		return
	}

	var inputErr *consultation.InputError
	if errors.As(err, &inputErr) {
		utils.JSONError(c, http.StatusBadRequest, inputErr.Message, inputErr.Code)
		return
	}

	utils.GetLogger().Error(fmt.Sprintf("fulfillment handler error: %v", err))
	utils.JSONError(c, http.StatusInternalServerError, utils.GenericErrorMessage, err.Error())
}
