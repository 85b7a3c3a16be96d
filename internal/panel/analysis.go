package panel

import "time"

// RiskLevel is the qualitative risk grading shared by safety and power-grid
// findings.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskSevere   RiskLevel = "severe"
)

// Sentiment grades the local-news read on tomorrow's school day.
type Sentiment string

const (
	SentimentExpectingClosure Sentiment = "expecting_closure"
	SentimentUncertain        Sentiment = "uncertain"
	SentimentExpectingSchool  Sentiment = "expecting_school"
	SentimentNoBuzz           Sentiment = "no_buzz"
)

// MeteorologyFindings covers forecast timing and accumulation. Snow
// probabilities are 0-100 and optional: a nil pointer means the specialist
// could not commit to a number for that window.
type MeteorologyFindings struct {
	MorningSnowProbability   *float64 `json:"morning_snow_probability,omitempty"`
	OvernightSnowProbability *float64 `json:"overnight_snow_probability,omitempty"`
	ExpectedSnowfallIn       float64  `json:"expected_snowfall_in"`
	IntensityScore           float64  `json:"intensity_score"` // 1-10
}

// HistoricalPattern is one past event judged similar to current conditions.
type HistoricalPattern struct {
	Season      string  `json:"season"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`    // 0-100
	SnowDayRate float64 `json:"snow_day_rate"` // 0-100
}

// HistoryFindings lists the most relevant historical precedents.
type HistoryFindings struct {
	SimilarPatterns []HistoricalPattern `json:"similar_patterns,omitempty"`
	YearsOfRecord   int                 `json:"years_of_record"`
}

// MostSimilar returns the single closest historical pattern, or nil when the
// record holds nothing comparable.
func (h *HistoryFindings) MostSimilar() *HistoricalPattern {
	var best *HistoricalPattern
	for i := range h.SimilarPatterns {
		p := &h.SimilarPatterns[i]
		if best == nil || p.Similarity > best.Similarity {
			best = p
		}
	}
	return best
}

// SafetyFindings grades road and transport risk.
type SafetyFindings struct {
	RoadRiskLevel RiskLevel `json:"road_risk_level"`
	RiskScore     float64   `json:"risk_score"` // 1-10
	Concerns      []string  `json:"concerns,omitempty"`
}

// NewsFindings summarizes local chatter and neighboring-district moves.
type NewsFindings struct {
	Sentiment        Sentiment `json:"sentiment"`
	NeighborClosures int       `json:"neighbor_closures"`
	Headlines        []string  `json:"headlines,omitempty"`
}

// InfrastructureFindings covers plowing and bus-route readiness.
type InfrastructureFindings struct {
	HoursToClearBusRoutes float64 `json:"hours_to_clear_bus_routes"`
	FleetReadiness        float64 `json:"fleet_readiness"` // 0-100
}

// PowerGridFindings covers outage risk for school facilities.
type PowerGridFindings struct {
	SchoolFacilityRisk RiskLevel `json:"school_facility_risk"`
	OutageProbability  float64   `json:"outage_probability"` // 0-100
}

// WebFindings carries the web verifier's cross-check flags. ExtremeColdConfirmed
// is the independent confirmation the extreme-cold override floor combines with
// the snapshot's own cold signal.
type WebFindings struct {
	ExtremeColdConfirmed bool     `json:"extreme_cold_confirmed"`
	MajorDiscrepancy     bool     `json:"major_discrepancy"`
	SourcesChecked       int      `json:"sources_checked"`
	Notes                []string `json:"notes,omitempty"`
}

// Analysis is one specialist's structured record for a run. Exactly one
// findings section is set, matching Role. Analyses are immutable once the
// specialist stage completes.
type Analysis struct {
	Role       Role      `json:"role"`
	Summary    string    `json:"summary"`
	ProducedAt time.Time `json:"produced_at"`

	Meteorology    *MeteorologyFindings    `json:"meteorology,omitempty"`
	History        *HistoryFindings        `json:"history,omitempty"`
	Safety         *SafetyFindings         `json:"safety,omitempty"`
	News           *NewsFindings           `json:"news,omitempty"`
	Infrastructure *InfrastructureFindings `json:"infrastructure,omitempty"`
	PowerGrid      *PowerGridFindings      `json:"power_grid,omitempty"`
	Web            *WebFindings            `json:"web,omitempty"`
}

// ErrorStub records an isolated specialist failure. It takes the analysis
// slot for the role so downstream consumers can tell a failed call from a
// low-confidence answer.
type ErrorStub struct {
	Role       Role      `json:"role"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Outcome is the result slot for one role: an Analysis or an ErrorStub,
// never both, never neither.
type Outcome struct {
	Role     Role       `json:"role"`
	Analysis *Analysis  `json:"analysis,omitempty"`
	Stub     *ErrorStub `json:"stub,omitempty"`
}

// Failed reports whether the specialist call failed.
func (o Outcome) Failed() bool {
	return o.Stub != nil
}

// AnalysisSet maps every panel role to its outcome. It is built once by the
// specialist stage and read-only afterward.
type AnalysisSet map[Role]Outcome

// Analyses returns the successful analyses in canonical role order.
func (s AnalysisSet) Analyses() []*Analysis {
	out := make([]*Analysis, 0, len(s))
	for _, role := range AllRoles() {
		if o, ok := s[role]; ok && o.Analysis != nil {
			out = append(out, o.Analysis)
		}
	}
	return out
}

// Failures returns the error stubs in canonical role order.
func (s AnalysisSet) Failures() []*ErrorStub {
	out := make([]*ErrorStub, 0)
	for _, role := range AllRoles() {
		if o, ok := s[role]; ok && o.Stub != nil {
			out = append(out, o.Stub)
		}
	}
	return out
}

// Analysis returns the analysis for role, or nil when the role failed or is
// absent.
func (s AnalysisSet) Analysis(role Role) *Analysis {
	if o, ok := s[role]; ok {
		return o.Analysis
	}
	return nil
}
