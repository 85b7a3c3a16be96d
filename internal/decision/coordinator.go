// Package decision turns specialist analyses and debate output into the one
// final closure prediction. The coordinator blends per-role probabilities with
// fixed domain weights, labels its own confidence from how the debate ended,
// and exposes follow-up consultations against the live panel.
package decision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"dev.frostline.agent/internal/debate"
	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

// domainWeights fixes each specialist's share of the blended probability. The
// web verifier carries no weight: it cross-checks the others instead of voting.
var domainWeights = map[panel.Role]float64{
	panel.RoleMeteorology:    0.30,
	panel.RoleSafety:         0.20,
	panel.RoleHistory:        0.15,
	panel.RoleNews:           0.15,
	panel.RoleInfrastructure: 0.10,
	panel.RolePowerGrid:      0.05,
}

// ConfidenceLevel grades how much trust the coordinator places in its number.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// maxPrimaryFactors caps how many weighted contributions the prediction names.
const maxPrimaryFactors = 3

var (
	// ErrNoWeightedInput means no weighted specialist produced a usable
	// probability, so there is nothing to blend.
	ErrNoWeightedInput = errors.New("no weighted specialist probabilities available")

	// ErrUnknownAnalyst means a consultation named a role with no seat on
	// the stage.
	ErrUnknownAnalyst = errors.New("no analyst registered for role")

	// ErrTooFewRoles means a cross-check named fewer than two roles.
	ErrTooFewRoles = errors.New("cross-check requires at least two roles")
)

// Contribution records one weighted specialist's input to the blend.
type Contribution struct {
	Role        panel.Role `json:"role"`
	Probability float64    `json:"probability"`
	Weight      float64    `json:"weight"`
	FromDebate  bool       `json:"from_debate"`
}

// Prediction is the coordinator's final output. The cold-safety override's
// in-place floor raise is the only mutation applied after synthesis.
type Prediction struct {
	RunID           string            `json:"run_id"`
	Location        string            `json:"location"`
	Probability     float64           `json:"probability"`
	ConfidenceLevel ConfidenceLevel   `json:"confidence_level"`
	Rationale       string            `json:"rationale"`
	PrimaryFactors  []string          `json:"primary_factors"`
	Contributions   []Contribution    `json:"contributions"`
	ExitReason      debate.ExitReason `json:"exit_reason,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Config bounds the coordinator's consultation calls.
type Config struct {
	// ConsultTimeout is the per-call budget for Consult and CrossCheck.
	ConsultTimeout time.Duration `json:"consult_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ConsultTimeout: 30 * time.Second}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.ConsultTimeout <= 0 {
		return fmt.Errorf("consult timeout must be positive, got %s", c.ConsultTimeout)
	}
	return nil
}

// Coordinator synthesizes the final prediction and brokers follow-up
// consultations to the specialists that produced the inputs.
type Coordinator struct {
	stage  *panel.Stage
	config Config
	log    *logrus.Logger
}

// NewCoordinator creates a coordinator over the given specialist stage.
func NewCoordinator(stage *panel.Stage, config Config, log *logrus.Logger) (*Coordinator, error) {
	if stage == nil {
		return nil, fmt.Errorf("coordinator requires a specialist stage")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Coordinator{stage: stage, config: config, log: log}, nil
}

// Weight returns the fixed domain weight for a role, zero for unweighted ones.
func Weight(role panel.Role) float64 {
	return domainWeights[role]
}

// Synthesize blends the weighted specialists into one probability. Each role
// contributes its final debate position when one exists, otherwise the
// probability extracted from its analysis; a stubbed role falls back the same
// way. collab may be nil when the debate stage was skipped.
func (c *Coordinator) Synthesize(wx *weather.Context, set panel.AnalysisSet, collab *debate.Collaboration) (*Prediction, error) {
	if wx == nil {
		return nil, fmt.Errorf("synthesis requires a weather context")
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("synthesis requires at least one specialist outcome: %w", ErrNoWeightedInput)
	}

	var (
		contributions []Contribution
		weightedSum   float64
		weightSum     float64
	)
	for _, role := range panel.AllRoles() {
		weight := domainWeights[role]
		if weight == 0 {
			continue
		}
		outcome, ok := set[role]
		if !ok {
			continue
		}

		probability := panel.ExtractProbability(role, outcome.Analysis)
		fromDebate := false
		if collab != nil {
			if pos, found := collab.FinalPosition(role); found {
				probability = pos.Probability
				fromDebate = true
			}
		}

		contributions = append(contributions, Contribution{
			Role:        role,
			Probability: probability,
			Weight:      weight,
			FromDebate:  fromDebate,
		})
		weightedSum += weight * probability
		weightSum += weight
	}

	if weightSum == 0 {
		return nil, ErrNoWeightedInput
	}

	probability := min(max(weightedSum/weightSum, 0), 100)
	web := webFindings(set)

	prediction := &Prediction{
		RunID:           wx.RunID,
		Location:        wx.Location,
		Probability:     probability,
		ConfidenceLevel: confidenceFrom(collab, web),
		Rationale:       buildRationale(probability, len(contributions), collab),
		PrimaryFactors:  primaryFactors(contributions, web),
		Contributions:   contributions,
		GeneratedAt:     time.Now().UTC(),
	}
	if collab != nil {
		prediction.ExitReason = collab.ExitReason
	}

	c.log.WithFields(logrus.Fields{
		"run_id":      wx.RunID,
		"probability": prediction.Probability,
		"confidence":  prediction.ConfidenceLevel,
		"specialists": len(contributions),
	}).Info("Prediction synthesized")

	return prediction, nil
}

// Consult re-invokes one specialist with its prior output and a follow-up
// question. The answer is fresh text; the analysis set is never mutated.
func (c *Coordinator) Consult(ctx context.Context, wx *weather.Context, set panel.AnalysisSet, role panel.Role, question string) (string, error) {
	analyst, ok := c.stage.Analyst(role)
	if !ok {
		return "", fmt.Errorf("consult %q: %w", role, ErrUnknownAnalyst)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.ConsultTimeout)
	defer cancel()

	answer, err := analyst.Consult(callCtx, panel.ConsultRequest{
		Weather:  wx,
		Prior:    set[role],
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("consult %q: %w", role, err)
	}

	c.log.WithFields(logrus.Fields{
		"role":     role,
		"question": question,
	}).Debug("Consultation answered")

	return answer, nil
}

// CrossCheck bundles the named specialists' prior outputs and asks the first
// one to validate its view against the rest. Later roles only supply context;
// the returned text is the lead role's view.
func (c *Coordinator) CrossCheck(ctx context.Context, wx *weather.Context, set panel.AnalysisSet, roles []panel.Role, question string) (string, error) {
	if len(roles) < 2 {
		return "", ErrTooFewRoles
	}

	lead := roles[0]
	analyst, ok := c.stage.Analyst(lead)
	if !ok {
		return "", fmt.Errorf("cross-check lead %q: %w", lead, ErrUnknownAnalyst)
	}

	peers := make([]panel.Outcome, 0, len(roles)-1)
	for _, role := range roles[1:] {
		if outcome, found := set[role]; found {
			peers = append(peers, outcome)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.ConsultTimeout)
	defer cancel()

	answer, err := analyst.Consult(callCtx, panel.ConsultRequest{
		Weather:   wx,
		Prior:     set[lead],
		PeerViews: peers,
		Question:  question,
	})
	if err != nil {
		return "", fmt.Errorf("cross-check lead %q: %w", lead, err)
	}

	c.log.WithFields(logrus.Fields{
		"lead":  lead,
		"peers": len(peers),
	}).Debug("Cross-check answered")

	return answer, nil
}

// webFindings pulls the verifier's cross-check section when present.
func webFindings(set panel.AnalysisSet) *panel.WebFindings {
	outcome, ok := set[panel.RoleWebVerifier]
	if !ok || outcome.Analysis == nil {
		return nil
	}
	return outcome.Analysis.Web
}

// confidenceFrom labels the prediction by how the debate ended. Consensus is
// high unless the web verifier found sources contradicting each other; an
// exhausted round budget is medium; an aborted or skipped debate is low.
func confidenceFrom(collab *debate.Collaboration, web *panel.WebFindings) ConfidenceLevel {
	if collab == nil {
		return ConfidenceLow
	}
	switch collab.ExitReason {
	case debate.ExitConsensus:
		if web != nil && web.MajorDiscrepancy {
			return ConfidenceMedium
		}
		return ConfidenceHigh
	case debate.ExitMaxRounds:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func buildRationale(probability float64, specialists int, collab *debate.Collaboration) string {
	head := fmt.Sprintf("Weighted synthesis of %d specialists puts the closure probability at %.1f%%.",
		specialists, probability)

	switch {
	case collab == nil:
		return head + " No debate was held; extracted specialist probabilities carry the estimate."
	case collab.ExitReason == debate.ExitConsensus:
		return fmt.Sprintf("%s The panel reached consensus after %d of %d rounds.",
			head, collab.TotalRounds, collab.MaxRoundsAllowed)
	case collab.ExitReason == debate.ExitMaxRounds:
		return fmt.Sprintf("%s The panel stayed split across all %d rounds.",
			head, collab.TotalRounds)
	default:
		return fmt.Sprintf("%s The debate aborted after %d completed rounds; extracted probabilities filled the gaps.",
			head, collab.TotalRounds)
	}
}

// primaryFactors names the top weighted contributions plus any web
// cross-check signal worth surfacing.
func primaryFactors(contributions []Contribution, web *panel.WebFindings) []string {
	ranked := make([]Contribution, len(contributions))
	copy(ranked, contributions)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Weight*ranked[i].Probability > ranked[j].Weight*ranked[j].Probability
	})

	factors := make([]string, 0, maxPrimaryFactors+2)
	for i, con := range ranked {
		if i == maxPrimaryFactors {
			break
		}
		factors = append(factors, fmt.Sprintf("%s at %.1f%% (weight %.0f%%)",
			con.Role.DisplayName(), con.Probability, con.Weight*100))
	}

	if web != nil && web.ExtremeColdConfirmed {
		factors = append(factors, "Web verification independently confirmed the extreme cold readings")
	}
	if web != nil && web.MajorDiscrepancy {
		factors = append(factors, "Web verification found a major discrepancy between sources")
	}
	return factors
}
