package debate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

// Config holds configuration for the debate round engine.
type Config struct {
	// MaxRounds bounds the sequential deliberation rounds.
	MaxRounds int `json:"max_rounds"`
	// ConsensusThreshold is the half-width of the acceptable spread band:
	// consensus requires spread ≤ 2×ConsensusThreshold.
	ConsensusThreshold float64 `json:"consensus_threshold"`
	// PositionTimeout bounds each specialist's deliberation call.
	PositionTimeout time.Duration `json:"position_timeout"`
	// MaxParallelism bounds concurrent deliberation calls within a round.
	MaxParallelism int `json:"max_parallelism"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:          5,
		ConsensusThreshold: 10,
		PositionTimeout:    30 * time.Second,
		MaxParallelism:     len(panel.AllRoles()),
	}
}

// ConsensusBand is the allowed total spread: the threshold read as ± band.
func (c Config) ConsensusBand() float64 {
	return 2 * c.ConsensusThreshold
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxRounds < 1 || c.MaxRounds > 10 {
		return fmt.Errorf("max rounds must be in [1,10], got %d", c.MaxRounds)
	}
	if c.ConsensusThreshold < 1 || c.ConsensusThreshold > 50 {
		return fmt.Errorf("consensus threshold must be in [1,50], got %.1f", c.ConsensusThreshold)
	}
	if c.PositionTimeout <= 0 {
		return fmt.Errorf("position timeout must be positive, got %s", c.PositionTimeout)
	}
	if c.MaxParallelism < 1 {
		return fmt.Errorf("max parallelism must be at least 1, got %d", c.MaxParallelism)
	}
	return nil
}

// Engine runs the deliberation rounds. Rounds are strictly sequential; the
// fan-out inside a round is concurrent with an all-complete barrier, so every
// specialist always sees the complete, finalized prior round.
type Engine struct {
	stage  *panel.Stage
	config Config
	log    *logrus.Logger
}

// NewEngine creates a debate engine over the given specialist stage.
func NewEngine(stage *panel.Stage, config Config, log *logrus.Logger) (*Engine, error) {
	if stage == nil {
		return nil, fmt.Errorf("debate engine requires a specialist stage")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid debate config: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{stage: stage, config: config, log: log}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Run executes the round loop over the analysis set and assembles the full
// collaboration record. A mid-debate cancellation exits with ExitError and
// retains every completed round; Run returns a non-nil error only for
// unusable input.
func (e *Engine) Run(ctx context.Context, wx *weather.Context, set panel.AnalysisSet) (*Collaboration, error) {
	if wx == nil {
		return nil, fmt.Errorf("debate requires a weather context")
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("debate requires at least one specialist outcome")
	}

	collab := &Collaboration{
		ID:                 uuid.New().String(),
		RunID:              wx.RunID,
		MaxRoundsAllowed:   e.config.MaxRounds,
		ConsensusThreshold: e.config.ConsensusThreshold,
		StartedAt:          time.Now().UTC(),
	}

	e.log.WithFields(logrus.Fields{
		"run_id":     wx.RunID,
		"debate_id":  collab.ID,
		"max_rounds": e.config.MaxRounds,
		"threshold":  e.config.ConsensusThreshold,
	}).Info("Debate started")

	var prior []panel.Position
	for number := 1; number <= e.config.MaxRounds; number++ {
		positions, err := e.collectPositions(ctx, wx, set, prior, number)
		if err != nil {
			collab.ExitReason = ExitError
			collab.FailureMessage = err.Error()
			e.log.WithError(err).WithFields(logrus.Fields{
				"run_id": wx.RunID,
				"round":  number,
			}).Warn("Debate round aborted")
			break
		}

		spread := spreadOf(positions)
		round := Round{
			Number:           number,
			Positions:        positions,
			Spread:           spread,
			ConsensusReached: spread <= e.config.ConsensusBand(),
		}
		collab.Rounds = append(collab.Rounds, round)
		prior = positions

		e.log.WithFields(logrus.Fields{
			"run_id":    wx.RunID,
			"round":     number,
			"spread":    spread,
			"consensus": round.ConsensusReached,
		}).Debug("Debate round completed")

		if round.ConsensusReached {
			collab.ExitReason = ExitConsensus
			break
		}
		if number == e.config.MaxRounds {
			collab.ExitReason = ExitMaxRounds
		}
	}

	finalize(collab)

	e.log.WithFields(logrus.Fields{
		"run_id":      wx.RunID,
		"exit_reason": collab.ExitReason,
		"rounds":      collab.TotalRounds,
	}).Info("Debate finished")

	return collab, nil
}

// collectPositions fans out to every specialist concurrently and joins on an
// all-complete barrier. A per-specialist failure substitutes the extracted
// fallback position; only context cancellation fails the round itself.
func (e *Engine) collectPositions(ctx context.Context, wx *weather.Context, set panel.AnalysisSet, prior []panel.Position, round int) ([]panel.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("round %d never started: %w", round, err)
	}

	roles := e.participatingRoles(set)
	results := make(chan panel.Position, len(roles))
	sem := semaphore.NewWeighted(int64(e.config.MaxParallelism))
	var wg sync.WaitGroup

	for _, role := range roles {
		wg.Add(1)
		go func(role panel.Role) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				results <- *panel.FallbackPosition(set[role])
				return
			}
			defer sem.Release(1)

			results <- e.deliberateOne(ctx, wx, set, prior, round, role)
		}(role)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byRole := make(map[panel.Role]panel.Position, len(roles))
	for pos := range results {
		byRole[pos.Role] = pos
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("round %d aborted: %w", round, err)
	}

	// Stable canonical order, one position per participating role.
	positions := make([]panel.Position, 0, len(roles))
	for _, role := range roles {
		positions = append(positions, byRole[role])
	}
	return positions, nil
}

func (e *Engine) deliberateOne(ctx context.Context, wx *weather.Context, set panel.AnalysisSet, prior []panel.Position, round int, role panel.Role) (pos panel.Position) {
	outcome := set[role]

	defer func() {
		if r := recover(); r != nil {
			e.log.WithFields(logrus.Fields{
				"role":   role,
				"round":  round,
				"run_id": wx.RunID,
				"panic":  r,
			}).Error("Deliberation panicked")
			pos = *panel.FallbackPosition(outcome)
		}
	}()

	analyst, ok := e.stage.Analyst(role)
	if !ok {
		return *panel.FallbackPosition(outcome)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.PositionTimeout)
	defer cancel()

	stated, err := analyst.Deliberate(callCtx, panel.DeliberationRequest{
		Weather:       wx,
		Own:           outcome,
		Peers:         set,
		PriorRound:    prior,
		Round:         round,
		ConsensusBand: e.config.ConsensusBand(),
	})
	if err != nil || stated == nil {
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"role":   role,
				"round":  round,
				"run_id": wx.RunID,
			}).Warn("Deliberation failed, extracting fallback position")
		}
		return *panel.FallbackPosition(outcome)
	}

	stated.Role = role
	if err := stated.Validate(); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"role":  role,
			"round": round,
		}).Warn("Deliberation produced an invalid position, extracting fallback")
		return *panel.FallbackPosition(outcome)
	}
	if stated.StatedAt.IsZero() {
		stated.StatedAt = time.Now().UTC()
	}
	return *stated
}

// participatingRoles returns the analysis set's roles in canonical order.
// Stubbed roles still participate: their positions come from the extractor.
func (e *Engine) participatingRoles(set panel.AnalysisSet) []panel.Role {
	roles := make([]panel.Role, 0, len(set))
	for _, role := range panel.AllRoles() {
		if _, ok := set[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func spreadOf(positions []panel.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	lo, hi := positions[0].Probability, positions[0].Probability
	for _, p := range positions[1:] {
		if p.Probability < lo {
			lo = p.Probability
		}
		if p.Probability > hi {
			hi = p.Probability
		}
	}
	return hi - lo
}
