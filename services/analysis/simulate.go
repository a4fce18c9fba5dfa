package analysis

import (
	"context"
	"time"

	"plancosmique/models"
)

// SimulatedStage is one step of the local animation-only progress fallback.
type SimulatedStage struct {
	Name     string
	Message  string
	Duration time.Duration
}

// DefaultStages animates a plausible analysis while no server-backed progress
// is available yet. Progress never reaches 100 and never completes: only a
// real event may finish the flow.
var DefaultStages = []SimulatedStage{
	{Name: "preparation", Message: "Préparation de votre thème cosmique...", Duration: 4 * time.Second},
	{Name: "alignement", Message: "Alignement des astres en cours...", Duration: 6 * time.Second},
	{Name: "interpretation", Message: "Interprétation des signes...", Duration: 8 * time.Second},
	{Name: "redaction", Message: "Rédaction de votre analyse...", Duration: 10 * time.Second},
}

// Simulator emits synthetic AnalysisProgressEvents on a fixed schedule. The
// caller discards it the instant a real server event arrives; simulated and
// real progress are never blended.
type Simulator struct {
	Stages []SimulatedStage

	// Tick is the emission interval, default 1s. Tests shrink it.
	Tick time.Duration
}

func NewSimulator() *Simulator {
	return &Simulator{Stages: DefaultStages, Tick: time.Second}
}

// Start begins emitting synthetic events for consultationID and returns a
// canceler. Events carry Completed=false always; progress tops out just
// short of done and holds there.
func (s *Simulator) Start(consultationID string, onEvent func(models.AnalysisProgressEvent)) (cancel func()) {
	ctx, cancelCtx := context.WithCancel(context.Background())

	tick := s.Tick
	if tick <= 0 {
		tick = time.Second
	}
	stages := s.Stages
	if len(stages) == 0 {
		stages = DefaultStages
	}

	var total time.Duration
	for _, stage := range stages {
		total += stage.Duration
	}

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		var elapsed time.Duration
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed += tick
				stageIndex, stage := stageAt(stages, elapsed)
				progress := int(elapsed * 95 / total)
				if progress > 95 {
					progress = 95
				}
				onEvent(models.AnalysisProgressEvent{
					ConsultationID: consultationID,
					Stage:          stage.Name,
					StageIndex:     stageIndex,
					Progress:       progress,
					Message:        stage.Message,
					Completed:      false,
					Timestamp:      time.Now(),
				})
			}
		}
	}()

	return cancelCtx
}

func stageAt(stages []SimulatedStage, elapsed time.Duration) (int, SimulatedStage) {
	var cursor time.Duration
	for i, stage := range stages {
		cursor += stage.Duration
		if elapsed < cursor {
			return i, stage
		}
	}
	last := len(stages) - 1
	return last, stages[last]
}
