// Package services wires the prediction pipeline end to end: weather context,
// specialist stage, debate, synthesis, cold-safety override, and the outcome
// ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/decision"
	"dev.frostline.agent/internal/ledger"
	"dev.frostline.agent/internal/metrics"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

const dateLayout = "2006-01-02"

// ErrInvalidRequest marks caller mistakes: malformed dates and scenario asks
// the weather source cannot honor. The HTTP layer maps it to a 400.
var ErrInvalidRequest = errors.New("invalid prediction request")

// PredictRequest asks for one full prediction run.
type PredictRequest struct {
	// Location names the school district's town, e.g. "Candia, NH".
	Location string

	// Date is the school day being predicted (YYYY-MM-DD); empty means today.
	Date string

	// Seed reseeds a scenario-backed weather source before the run. Zero
	// leaves the source's sequence alone.
	Seed int64

	// Scenario pins a scenario-backed weather source to one named scenario.
	Scenario string
}

// PredictionResult bundles everything a run produced.
type PredictionResult struct {
	Date          string                `json:"date"`
	Context       *weather.Context      `json:"context"`
	Analyses      panel.AnalysisSet     `json:"analyses"`
	Collaboration *debate.Collaboration `json:"collaboration,omitempty"`
	Prediction    *decision.Prediction  `json:"prediction"`
	Entry         *ledger.Entry         `json:"ledger_entry,omitempty"`
}

// Config tunes the pipeline.
type Config struct {
	// SkipDebate short-circuits straight from analyses to synthesis.
	SkipDebate bool
}

// seedable and forceable are the optional capabilities of scenario-backed
// weather sources.
type seedable interface{ Reseed(seed int64) }
type forceable interface{ Force(name string) error }

// PredictionService runs the full pipeline and records each run in the ledger.
type PredictionService struct {
	source      weather.Source
	stage       *panel.Stage
	engine      *debate.Engine
	coordinator *decision.Coordinator
	store       *ledger.Store
	config      Config
	log         *logrus.Logger
}

// NewPredictionService creates the service. The ledger store is optional;
// without one, runs simply go unrecorded. The engine is required unless the
// config skips the debate stage.
func NewPredictionService(
	source weather.Source,
	stage *panel.Stage,
	engine *debate.Engine,
	coordinator *decision.Coordinator,
	store *ledger.Store,
	config Config,
	log *logrus.Logger,
) (*PredictionService, error) {
	if source == nil {
		return nil, fmt.Errorf("prediction service requires a weather source")
	}
	if stage == nil {
		return nil, fmt.Errorf("prediction service requires a specialist stage")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("prediction service requires a coordinator")
	}
	if engine == nil && !config.SkipDebate {
		return nil, fmt.Errorf("prediction service requires a debate engine unless the debate is skipped")
	}
	if log == nil {
		log = logrus.New()
	}
	return &PredictionService{
		source:      source,
		stage:       stage,
		engine:      engine,
		coordinator: coordinator,
		store:       store,
		config:      config,
		log:         log,
	}, nil
}

// Store exposes the ledger for read paths. Nil when runs are unrecorded.
func (s *PredictionService) Store() *ledger.Store {
	return s.store
}

// Coordinator exposes the coordinator for consultation endpoints.
func (s *PredictionService) Coordinator() *decision.Coordinator {
	return s.coordinator
}

// Roles lists the specialist roles seated on the stage.
func (s *PredictionService) Roles() []panel.Role {
	return s.stage.Roles()
}

// Predict runs the full pipeline for one school day. A ledger failure is
// logged and absorbed; the prediction itself still comes back.
func (s *PredictionService) Predict(ctx context.Context, req PredictRequest) (*PredictionResult, error) {
	started := time.Now()

	date, err := resolveDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.applyScenarioControls(req); err != nil {
		return nil, err
	}

	wx, err := weather.BuildContext(ctx, s.source, req.Location)
	if err != nil {
		metrics.RecordWeatherFetch("error")
		return nil, fmt.Errorf("prediction aborted: %w", err)
	}
	metrics.RecordWeatherFetch("ok")

	s.log.WithFields(logrus.Fields{
		"run_id":   wx.RunID,
		"location": wx.Location,
		"date":     date,
	}).Info("Prediction run started")

	set := s.stage.Analyze(ctx, wx)
	for _, stub := range set.Failures() {
		metrics.RecordSpecialistFailure(string(stub.Role))
	}

	var collab *debate.Collaboration
	if !s.config.SkipDebate {
		collab, err = s.engine.Run(ctx, wx, set)
		if err != nil {
			return nil, fmt.Errorf("debate failed: %w", err)
		}
		metrics.RecordDebateRounds(collab.TotalRounds)
	}

	prediction, err := s.coordinator.Synthesize(wx, set, collab)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	web := webSection(set)
	if floor, ok := decision.ActiveFloor(wx.Snapshot, web); ok {
		metrics.RecordOverride(string(floor))
	}
	decision.ApplyColdOverride(prediction, wx.Snapshot, web)

	result := &PredictionResult{
		Date:          date,
		Context:       wx,
		Analyses:      set,
		Collaboration: collab,
		Prediction:    prediction,
	}
	result.Entry = s.appendToLedger(ctx, date, prediction)

	metrics.RecordPrediction(string(prediction.ConfidenceLevel), string(prediction.ExitReason), prediction.Probability)
	metrics.RecordPredictionDuration(time.Since(started))

	s.log.WithFields(logrus.Fields{
		"run_id":      wx.RunID,
		"probability": prediction.Probability,
		"confidence":  prediction.ConfidenceLevel,
		"duration":    time.Since(started).Round(time.Millisecond),
	}).Info("Prediction run finished")

	return result, nil
}

// applyScenarioControls forwards request seed/scenario knobs to sources that
// understand them. Asking a real provider for a scenario is a caller error.
func (s *PredictionService) applyScenarioControls(req PredictRequest) error {
	if req.Seed != 0 {
		if src, ok := s.source.(seedable); ok {
			src.Reseed(req.Seed)
		}
	}
	if req.Scenario != "" {
		src, ok := s.source.(forceable)
		if !ok {
			return fmt.Errorf("%w: weather source does not support scenario %q", ErrInvalidRequest, req.Scenario)
		}
		if err := src.Force(req.Scenario); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

// appendToLedger records the run, best effort.
func (s *PredictionService) appendToLedger(ctx context.Context, date string, prediction *decision.Prediction) *ledger.Entry {
	if s.store == nil {
		return nil
	}

	entry := &ledger.Entry{
		Date:            date,
		Location:        prediction.Location,
		Probability:     prediction.Probability,
		ConfidenceLevel: string(prediction.ConfidenceLevel),
		ExitReason:      string(prediction.ExitReason),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"run_id": prediction.RunID,
			"date":   date,
		}).Warn("Ledger append failed; prediction continues unrecorded")
		return nil
	}
	return entry
}

func resolveDate(date string) (string, error) {
	if date == "" {
		return time.Now().Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRequest, date)
	}
	return date, nil
}

func webSection(set panel.AnalysisSet) *panel.WebFindings {
	if a := set.Analysis(panel.RoleWebVerifier); a != nil {
		return a.Web
	}
	return nil
}
