package panel

import (
	"fmt"
	"time"
)

// Fixed extraction tables. These breakpoints are load-bearing: downstream
// behavior is calibrated against them, so they must not drift.
var (
	safetyRiskProbability = map[RiskLevel]float64{
		RiskLow:      15,
		RiskModerate: 40,
		RiskHigh:     70,
		RiskSevere:   90,
	}

	newsSentimentProbability = map[Sentiment]float64{
		SentimentExpectingClosure: 75,
		SentimentUncertain:        50,
		SentimentExpectingSchool:  25,
		SentimentNoBuzz:           40,
	}

	gridRiskProbability = map[RiskLevel]float64{
		RiskLow:      10,
		RiskModerate: 35,
		RiskHigh:     65,
		RiskSevere:   90,
	}
)

// ExtractProbability deterministically maps a specialist analysis to a 0-100
// closure probability using fixed per-role rules. It is the fallback path for
// a failed deliberation call and the position source when no deliberation ran.
// A nil or sectionless analysis yields the role's neutral default.
func ExtractProbability(role Role, a *Analysis) float64 {
	switch role {
	case RoleMeteorology:
		return extractMeteorology(findings(a).Meteorology)
	case RoleHistory:
		return extractHistory(findings(a).History)
	case RoleSafety:
		return extractSafety(findings(a).Safety)
	case RoleNews:
		return extractNews(findings(a).News)
	case RoleInfrastructure:
		return extractInfrastructure(findings(a).Infrastructure)
	case RolePowerGrid:
		return extractPowerGrid(findings(a).PowerGrid)
	case RoleWebVerifier:
		return extractWeb(findings(a).Web)
	default:
		return 50
	}
}

// findings shields the extractors from nil analyses.
func findings(a *Analysis) Analysis {
	if a == nil {
		return Analysis{}
	}
	return *a
}

func extractMeteorology(m *MeteorologyFindings) float64 {
	base := 50.0
	var snowfall float64
	if m != nil {
		snowfall = m.ExpectedSnowfallIn
		switch {
		case m.MorningSnowProbability != nil:
			base = *m.MorningSnowProbability
		case m.OvernightSnowProbability != nil:
			base = *m.OvernightSnowProbability
		}
	}

	switch {
	case snowfall >= 8:
		return min(base+30, 95)
	case snowfall >= 6:
		return min(base+15, 85)
	default:
		return base
	}
}

func extractHistory(h *HistoryFindings) float64 {
	if h == nil {
		return 50
	}
	if best := h.MostSimilar(); best != nil {
		return best.SnowDayRate
	}
	return 50
}

func extractSafety(s *SafetyFindings) float64 {
	if s != nil {
		if p, ok := safetyRiskProbability[s.RoadRiskLevel]; ok {
			return p
		}
	}
	return 50
}

func extractNews(n *NewsFindings) float64 {
	base := 50.0
	closures := 0
	if n != nil {
		closures = n.NeighborClosures
		if p, ok := newsSentimentProbability[n.Sentiment]; ok {
			base = p
		}
	}
	return min(base+10*float64(closures), 95)
}

func extractInfrastructure(i *InfrastructureFindings) float64 {
	if i == nil {
		return 50
	}
	switch hours := i.HoursToClearBusRoutes; {
	case hours <= 0:
		return 20
	case hours <= 2:
		return 35
	case hours <= 4:
		return 55
	default:
		return 75
	}
}

func extractPowerGrid(g *PowerGridFindings) float64 {
	if g != nil {
		if p, ok := gridRiskProbability[g.SchoolFacilityRisk]; ok {
			return p
		}
	}
	return 20
}

func extractWeb(w *WebFindings) float64 {
	switch {
	case w != nil && w.ExtremeColdConfirmed:
		return 85
	case w != nil && w.MajorDiscrepancy:
		return 60
	default:
		return 50
	}
}

// FallbackPosition builds the substitute position for a role whose
// deliberation call failed: the extracted probability at confidence 60 with a
// generic rationale.
func FallbackPosition(o Outcome) *Position {
	return &Position{
		Role:        o.Role,
		Probability: ExtractProbability(o.Role, o.Analysis),
		Confidence:  60,
		Rationale:   fmt.Sprintf("Derived from the %s analysis after the deliberation call failed.", o.Role.DisplayName()),
		Fallback:    true,
		StatedAt:    time.Now().UTC(),
	}
}
