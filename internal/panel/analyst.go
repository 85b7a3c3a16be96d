package panel

import (
	"context"

	"dev.frostline.agent/internal/weather"
)

// DeliberationRequest carries everything a specialist sees when restating its
// probability in a deliberation round: its own prior outcome, every peer's
// outcome, and the previous round's finalized positions (nil on round one).
type DeliberationRequest struct {
	Weather       *weather.Context
	Own           Outcome
	Peers         AnalysisSet
	PriorRound    []Position
	Round         int
	ConsensusBand float64 // allowed total spread; challenges target peers outside it
}

// ConsultRequest carries a follow-up question to one specialist. PeerViews is
// populated for cross-checks: the prior outputs of the other named roles that
// the answering specialist validates against.
type ConsultRequest struct {
	Weather   *weather.Context
	Prior     Outcome
	PeerViews []Outcome
	Question  string
}

// Analyst is the opaque specialist capability: given a role and a context,
// produce a structured analysis. Implementations must be safe for concurrent
// use and must honor ctx cancellation; panics are contained at the stage
// boundary but indicate a broken analyst.
type Analyst interface {
	// Role identifies which panel seat this analyst fills.
	Role() Role

	// Analyze produces the specialist's structured record for the run.
	Analyze(ctx context.Context, wx *weather.Context) (*Analysis, error)

	// Deliberate restates the specialist's probability given peer input.
	Deliberate(ctx context.Context, req DeliberationRequest) (*Position, error)

	// Consult answers a follow-up question without mutating prior output.
	Consult(ctx context.Context, req ConsultRequest) (string, error)
}
