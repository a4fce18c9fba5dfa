package consultation

import (
	"context"
	"fmt"

	"plancosmique/backend"
	"plancosmique/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProvisionerService idempotently creates and retrieves consultation records.
type ProvisionerService interface {
	Create(ctx context.Context, userID string, choice models.ConsultationChoice, form FormData) (string, error)
	Fetch(ctx context.Context, consultationID string) (*models.Consultation, error)
}

// FormData is the birth data collected from the form step, or sourced from
// the user's profile when the machine skips the form.
type FormData struct {
	Subject models.BirthData  `json:"subject"`
	Third   *models.BirthData `json:"third,omitempty"`
}

// Validate rejects incomplete input before any network call is made.
func (f FormData) Validate(choice models.ConsultationChoice) error {
	if f.Subject.FullName == "" || f.Subject.BirthDate == "" || f.Subject.BirthPlace == "" {
		return NewInputError("données de naissance incomplètes")
	}
	if choice.RequiresThirdPartyForm() {
		if f.Third == nil || f.Third.FullName == "" || f.Third.BirthDate == "" {
			return NewInputError("données du tiers manquantes")
		}
	}
	return nil
}

// InputError is a pre-network validation failure; the user corrects and
// resubmits, nothing is retried automatically.
type InputError struct {
	Code    string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewInputError(msg string) error {
	return &InputError{
		Code:    "consultationInputError",
		Message: msg,
	}
}

// DefaultProvisionerService implements ProvisionerService against the
// consultation backend.
type DefaultProvisionerService struct {
	API    backend.ConsultationAPI
	Logger *zap.Logger
}

func NewProvisionerService(api backend.ConsultationAPI, logger *zap.Logger) *DefaultProvisionerService {
	return &DefaultProvisionerService{API: api, Logger: logger}
}

// Create sends exactly one creation request per user action. There is no
// automatic retry on timeout: a duplicate consultation is worse than asking
// the user to resubmit. A fresh idempotency key accompanies each attempt so
// the backend can collapse double submissions of the same action.
func (s *DefaultProvisionerService) Create(ctx context.Context, userID string, choice models.ConsultationChoice, form FormData) (string, error) {
	if err := form.Validate(choice); err != nil {
		return "", err
	}

	payload := models.CreateConsultationPayload{
		UserID:    userID,
		ChoiceID:  choice.ID,
		Title:     choice.Title,
		Subject:   form.Subject,
		Third:     form.Third,
		Offerings: choice.RequiredOfferings,
	}

	idempotencyKey := uuid.New().String()
	id, err := s.API.CreateConsultation(ctx, payload, idempotencyKey)
	if err != nil {
		s.Logger.Warn("consultation creation failed",
			zap.String("userId", userID),
			zap.String("choiceId", choice.ID),
			zap.Error(err))
		return "", err
	}

	s.Logger.Info("consultation created",
		zap.String("consultationId", id),
		zap.String("choiceId", choice.ID))
	return id, nil
}

// Fetch retrieves the canonical consultation projection. Field-name
// normalization happens in the backend client, the sole boundary where the
// store's duck-typed payloads are visible.
func (s *DefaultProvisionerService) Fetch(ctx context.Context, consultationID string) (*models.Consultation, error) {
	if consultationID == "" {
		return nil, NewInputError("identifiant de consultation manquant")
	}
	return s.API.FetchConsultation(ctx, consultationID)
}
