// Package debate runs the specialist panel through sequential deliberation
// rounds until the probability spread collapses inside the consensus band or
// the round budget runs out, then derives confidence journeys and key
// disagreements from the completed rounds.
package debate

import (
	"time"

	"dev.frostline.agent/internal/panel"
)

// ExitReason states why the round loop terminated.
type ExitReason string

const (
	ExitConsensus ExitReason = "consensus"
	ExitMaxRounds ExitReason = "max_rounds"
	ExitError     ExitReason = "error"
)

// Resolution classifies how a challenge played out across rounds.
type Resolution string

const (
	// ResolutionAgreed: the challenged specialist moved inside the consensus
	// band of the challenger's next position.
	ResolutionAgreed Resolution = "agreed"
	// ResolutionCompromised: the challenged specialist moved toward the
	// challenger but stopped outside the band.
	ResolutionCompromised Resolution = "compromised"
	// ResolutionDisagreed: the challenged specialist moved away, an explicit
	// counter-position.
	ResolutionDisagreed Resolution = "disagreed"
	// ResolutionUnresolved: the challenge was never answered, either because
	// the challenged specialist stood still or because the debate ended.
	// Distinct from a negotiated disagreement.
	ResolutionUnresolved Resolution = "unresolved"
)

// Exchange is one challenge traced to its outcome. Derived from a position's
// embedded challenges once the following round (if any) is final.
type Exchange struct {
	Round            int        `json:"round"`
	Challenger       panel.Role `json:"challenger"`
	Challenged       panel.Role `json:"challenged"`
	ChallengeText    string     `json:"challenge_text"`
	Response         string     `json:"response,omitempty"`
	Resolution       Resolution `json:"resolution"`
	ProbabilityShift float64    `json:"probability_shift"`
}

// Round is one completed deliberation round: every specialist's position,
// the spread across them, and the consensus verdict. Rounds are appended in
// order and never revised.
type Round struct {
	Number           int              `json:"number"`
	Positions        []panel.Position `json:"positions"`
	Spread           float64          `json:"spread"`
	ConsensusReached bool             `json:"consensus_reached"`
	Exchanges        []Exchange       `json:"exchanges,omitempty"`
}

// Position returns the round's position for role.
func (r *Round) Position(role panel.Role) (panel.Position, bool) {
	for _, p := range r.Positions {
		if p.Role == role {
			return p, true
		}
	}
	return panel.Position{}, false
}

// ConfidenceJourney records one specialist's movement from its first stated
// probability to its last.
type ConfidenceJourney struct {
	Role               panel.Role `json:"role"`
	InitialProbability float64    `json:"initial_probability"`
	FinalProbability   float64    `json:"final_probability"`
	TotalShift         float64    `json:"total_shift"`
	Explanation        string     `json:"explanation,omitempty"`
}

// ImpactLevel grades how much a disagreement moved the debate.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Disagreement is one surfaced point of contention.
type Disagreement struct {
	Topic        string       `json:"topic"`
	Participants []panel.Role `json:"participants"`
	Resolution   Resolution   `json:"resolution"`
	Impact       ImpactLevel  `json:"impact"`
}

// Collaboration is the full debate record, assembled once after the round
// loop terminates.
type Collaboration struct {
	ID                 string              `json:"id"`
	RunID              string              `json:"run_id"`
	Rounds             []Round             `json:"rounds"`
	TotalRounds        int                 `json:"total_rounds"`
	MaxRoundsAllowed   int                 `json:"max_rounds_allowed"`
	ConsensusThreshold float64             `json:"consensus_threshold"`
	FinalConsensus     bool                `json:"final_consensus"`
	ExitReason         ExitReason          `json:"exit_reason"`
	FailureMessage     string              `json:"failure_message,omitempty"`
	ConfidenceJourney  []ConfidenceJourney `json:"confidence_journey"`
	KeyDisagreements   []Disagreement      `json:"key_disagreements"`
	Summary            string              `json:"summary"`
	StartedAt          time.Time           `json:"started_at"`
	EndedAt            time.Time           `json:"ended_at"`
}

// FinalRound returns the last completed round, or nil when none completed.
func (c *Collaboration) FinalRound() *Round {
	if len(c.Rounds) == 0 {
		return nil
	}
	return &c.Rounds[len(c.Rounds)-1]
}

// FinalPosition returns role's position in the last completed round.
func (c *Collaboration) FinalPosition(role panel.Role) (panel.Position, bool) {
	if final := c.FinalRound(); final != nil {
		return final.Position(role)
	}
	return panel.Position{}, false
}
