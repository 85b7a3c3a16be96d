package panel

import (
	"fmt"
	"time"
)

// Challenge is one specialist's objection to another's stated position.
type Challenge struct {
	Target Role   `json:"target"`
	Claim  string `json:"claim"`
}

// Position is one specialist's probability statement for one deliberation
// round. Positions are append-only: once stated they are never revised, a
// later round simply adds a new one.
type Position struct {
	Role        Role        `json:"role"`
	Probability float64     `json:"probability"` // 0-100
	Confidence  float64     `json:"confidence"`  // 0-100
	Rationale   string      `json:"rationale"`
	KeyFactors  []string    `json:"key_factors,omitempty"`
	Challenges  []Challenge `json:"challenges,omitempty"`
	Fallback    bool        `json:"fallback,omitempty"`
	StatedAt    time.Time   `json:"stated_at"`
}

// Validate checks the position's bounds.
func (p *Position) Validate() error {
	if !p.Role.Valid() {
		return ErrUnknownRole.WithDetail(string(p.Role))
	}
	if p.Probability < 0 || p.Probability > 100 {
		return fmt.Errorf("position probability %.2f out of range [0,100]", p.Probability)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return fmt.Errorf("position confidence %.2f out of range [0,100]", p.Confidence)
	}
	return nil
}
