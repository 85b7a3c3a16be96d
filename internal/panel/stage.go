package panel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"dev.frostline.agent/internal/weather"
)

// StageConfig configures the specialist stage.
type StageConfig struct {
	MaxParallelism  int           `json:"max_parallelism"`
	AnalysisTimeout time.Duration `json:"analysis_timeout"`
}

// DefaultStageConfig returns the default stage configuration.
func DefaultStageConfig() StageConfig {
	return StageConfig{
		MaxParallelism:  len(AllRoles()),
		AnalysisTimeout: 30 * time.Second,
	}
}

// Stage fans a weather context out to every registered analyst concurrently
// and joins on an all-complete barrier. One specialist's failure never blocks
// its siblings: the failed role gets an ErrorStub in its slot.
type Stage struct {
	analysts map[Role]Analyst
	order    []Role
	config   StageConfig
	log      *logrus.Logger
}

// NewStage registers the analysts and validates the panel: roles must belong
// to the closed set and appear at most once.
func NewStage(analysts []Analyst, config StageConfig, log *logrus.Logger) (*Stage, error) {
	if len(analysts) == 0 {
		return nil, ErrNoAnalysts
	}
	if log == nil {
		log = logrus.New()
	}
	if config.MaxParallelism <= 0 {
		config.MaxParallelism = DefaultStageConfig().MaxParallelism
	}
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = DefaultStageConfig().AnalysisTimeout
	}

	byRole := make(map[Role]Analyst, len(analysts))
	order := make([]Role, 0, len(analysts))
	for _, a := range analysts {
		role := a.Role()
		if !role.Valid() {
			return nil, ErrUnknownRole.WithDetail(string(role))
		}
		if _, dup := byRole[role]; dup {
			return nil, ErrDuplicateRole.WithDetail(string(role))
		}
		byRole[role] = a
		order = append(order, role)
	}

	return &Stage{analysts: byRole, order: order, config: config, log: log}, nil
}

// Roles returns the registered roles in registration order.
func (s *Stage) Roles() []Role {
	out := make([]Role, len(s.order))
	copy(out, s.order)
	return out
}

// Analyst returns the analyst seated for role.
func (s *Stage) Analyst(role Role) (Analyst, bool) {
	a, ok := s.analysts[role]
	return a, ok
}

// Config returns the stage configuration.
func (s *Stage) Config() StageConfig {
	return s.config
}

// Analyze invokes every analyst concurrently and returns the complete
// role → outcome mapping. The mapping always holds one entry per registered
// role; failures are stubs, never omissions.
func (s *Stage) Analyze(ctx context.Context, wx *weather.Context) AnalysisSet {
	outcomes := make(chan Outcome, len(s.analysts))
	sem := semaphore.NewWeighted(int64(s.config.MaxParallelism))
	var wg sync.WaitGroup

	for role, analyst := range s.analysts {
		wg.Add(1)
		go func(role Role, analyst Analyst) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes <- stubOutcome(role, fmt.Errorf("analysis slot never opened: %w", err))
				return
			}
			defer sem.Release(1)

			outcomes <- s.analyzeOne(ctx, role, analyst, wx)
		}(role, analyst)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	set := make(AnalysisSet, len(s.analysts))
	for outcome := range outcomes {
		set[outcome.Role] = outcome
	}

	s.log.WithFields(logrus.Fields{
		"run_id":   wx.RunID,
		"roles":    len(set),
		"failures": len(set.Failures()),
	}).Debug("Specialist stage completed")

	return set
}

func (s *Stage) analyzeOne(ctx context.Context, role Role, analyst Analyst, wx *weather.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"role":   role,
				"run_id": wx.RunID,
				"panic":  r,
			}).Error("Analyst panicked")
			out = stubOutcome(role, fmt.Errorf("analyst panicked: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, s.config.AnalysisTimeout)
	defer cancel()

	analysis, err := analyst.Analyze(callCtx, wx)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"role":   role,
			"run_id": wx.RunID,
		}).Warn("Specialist analysis failed")
		return stubOutcome(role, err)
	}
	if analysis == nil {
		return stubOutcome(role, fmt.Errorf("analyst returned no analysis"))
	}
	analysis.Role = role
	if analysis.ProducedAt.IsZero() {
		analysis.ProducedAt = time.Now().UTC()
	}

	return Outcome{Role: role, Analysis: analysis}
}

func stubOutcome(role Role, err error) Outcome {
	return Outcome{
		Role: role,
		Stub: &ErrorStub{
			Role:       role,
			Message:    err.Error(),
			OccurredAt: time.Now().UTC(),
		},
	}
}
