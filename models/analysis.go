package models

import "time"

// AnalysisProgressEvent is one progress report from the analysis engine.
// Transient and stream-only: only the latest value is retained. Progress and
// StageIndex are monotonic by contract of the producer.
type AnalysisProgressEvent struct {
	ConsultationID string    `json:"consultationId"`
	Stage          string    `json:"stage"`
	StageIndex     int       `json:"stageIndex"`
	Progress       int       `json:"progress"`
	Message        string    `json:"message"`
	Completed      bool      `json:"completed"`
	Timestamp      time.Time `json:"timestamp"`
}
