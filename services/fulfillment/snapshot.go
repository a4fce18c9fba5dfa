package fulfillment

import "plancosmique/services/payment"

// StatusConfig is the display configuration the UI renders for a status.
type StatusConfig struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
	Color   string `json:"color"`
}

// Actions are the navigation targets offered to the user in the current
// state. Empty string means the action is unavailable.
type Actions struct {
	ViewConsultation string `json:"viewConsultation,omitempty"`
	DownloadBook     string `json:"downloadBook,omitempty"`
	BuyOfferings     string `json:"buyOfferings,omitempty"`
	Retry            string `json:"retry,omitempty"`
	GoHome           string `json:"goHome"`
}

// Snapshot is the hook-shaped view of a fulfillment session.
type Snapshot struct {
	Status                string       `json:"status"`
	StatusConfig          StatusConfig `json:"statusConfig"`
	AnalysisProgress      int          `json:"analysisProgress"`
	CurrentStageMessage   string       `json:"currentStageMessage"`
	ConsultationID        string       `json:"consultationId,omitempty"`
	DownloadURL           string       `json:"downloadUrl,omitempty"`
	ShouldAutoRedirect    bool         `json:"shouldAutoRedirect"`
	AutoRedirectCountdown int          `json:"autoRedirectCountdown"`
	RedirectTarget        string       `json:"redirectTarget,omitempty"`
	Deficits              any          `json:"missingOfferings,omitempty"`
	Actions               Actions      `json:"actions"`
}

var statusConfigs = map[string]StatusConfig{
	"selection": {Title: "Choisissez votre consultation", Message: "Sélectionnez une consultation pour commencer.", Icon: "sparkles", Color: "violet"},
	"form":      {Title: "Vos informations", Message: "Renseignez vos données de naissance.", Icon: "user", Color: "violet"},
	"offering":  {Title: "Offrandes requises", Message: "Des offrandes manquent pour cette consultation.", Icon: "gift", Color: "amber"},
	"processing": {
		Title: "Vérification du paiement", Message: "Votre paiement est en cours de vérification...", Icon: "loader", Color: "blue",
	},
	"consulter":     {Title: "Consommation des offrandes", Message: "Vos offrandes sont en cours de consommation...", Icon: "flame", Color: "amber"},
	"genereanalyse": {Title: "Génération de l'analyse", Message: "Votre analyse cosmique est en cours de génération...", Icon: "stars", Color: "indigo"},
	"completed":     {Title: "Analyse terminée", Message: "Votre analyse est prête. Redirection imminente...", Icon: "check", Color: "green"},
	"already_used":  {Title: "Paiement déjà utilisé", Message: "Ce paiement a déjà été traité. Votre analyse est disponible.", Icon: "check", Color: "green"},
	"error":         {Title: "Une erreur est survenue", Message: "Le traitement n'a pas pu aboutir.", Icon: "alert", Color: "red"},
}

// statusFor derives the exposed status from the machine state.
func statusFor(s State) string {
	switch s.Phase {
	case PhaseGenereAnalyse:
		if s.AnalysisCompleted {
			if s.PaymentState == payment.StateAlreadyUsed {
				return "already_used"
			}
			return "completed"
		}
		return "genereanalyse"
	case PhaseError:
		return "error"
	default:
		return string(s.Phase)
	}
}

// configFor returns the display configuration, substituting the verbatim
// backend message on errors.
func configFor(status string, s State) StatusConfig {
	cfg, ok := statusConfigs[status]
	if !ok {
		cfg = statusConfigs["error"]
	}
	if status == "error" && s.ErrorMessage != "" {
		cfg.Message = s.ErrorMessage
	}
	return cfg
}
