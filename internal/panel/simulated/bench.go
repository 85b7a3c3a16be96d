// Package simulated provides the deterministic analyst bench that fills the
// panel when no model-backed analysts are configured. Every finding is a pure
// function of the weather snapshot plus bounded seeded jitter, so a pinned
// seed reproduces a run exactly.
package simulated

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

// stubbornness is how strongly each role holds its own number during
// deliberation: the fraction of its prior position retained when peers pull
// it toward the round mean.
var stubbornness = map[panel.Role]float64{
	panel.RoleMeteorology:    0.70,
	panel.RoleHistory:        0.50,
	panel.RoleSafety:         0.60,
	panel.RoleNews:           0.30,
	panel.RoleInfrastructure: 0.40,
	panel.RolePowerGrid:      0.35,
	panel.RoleWebVerifier:    0.50,
}

// Option configures the bench.
type Option func(*options)

type options struct {
	seed int64
}

// WithSeed pins the bench jitter. A zero seed falls back to the current time.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// Bench returns one simulated analyst per panel role, in canonical order.
// Analysts share one seed lineage, so a pinned seed reproduces the full panel.
func Bench(opts ...Option) []panel.Analyst {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}

	roles := panel.AllRoles()
	analysts := make([]panel.Analyst, 0, len(roles))
	for i, role := range roles {
		analysts = append(analysts, &analyst{
			role: role,
			rng:  rand.New(rand.NewSource(o.seed + int64(i))),
		})
	}
	return analysts
}

// New returns a single simulated analyst for role.
func New(role panel.Role, opts ...Option) (panel.Analyst, error) {
	if !role.Valid() {
		return nil, panel.ErrUnknownRole.WithDetail(string(role))
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}
	return &analyst{role: role, rng: rand.New(rand.NewSource(o.seed))}, nil
}

type analyst struct {
	role panel.Role

	mu  sync.Mutex
	rng *rand.Rand
}

func (a *analyst) Role() panel.Role { return a.role }

// jitter returns a seeded offset in [-spread, +spread].
func (a *analyst) jitter(spread float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return (a.rng.Float64()*2 - 1) * spread
}

func (a *analyst) Analyze(ctx context.Context, wx *weather.Context) (*panel.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := wx.Snapshot
	analysis := &panel.Analysis{Role: a.role, ProducedAt: time.Now().UTC()}

	switch a.role {
	case panel.RoleMeteorology:
		morning := clampPct(snap.MorningSnowChance + a.jitter(3))
		overnight := clampPct(snap.OvernightSnowChance + a.jitter(3))
		analysis.Meteorology = &panel.MeteorologyFindings{
			MorningSnowProbability:   &morning,
			OvernightSnowProbability: &overnight,
			ExpectedSnowfallIn:       snap.ExpectedSnowfallIn,
			IntensityScore:           intensityScore(snap),
		}
		analysis.Summary = fmt.Sprintf("Expecting %.1f inches with a %.0f%% morning snow chance.",
			snap.ExpectedSnowfallIn, morning)

	case panel.RoleHistory:
		analysis.History = a.historyFindings(snap)
		analysis.Summary = fmt.Sprintf("Found %d comparable events in the record.",
			len(analysis.History.SimilarPatterns))

	case panel.RoleSafety:
		level := roadRisk(snap)
		analysis.Safety = &panel.SafetyFindings{
			RoadRiskLevel: level,
			RiskScore:     riskScore(level),
			Concerns:      safetyConcerns(snap),
		}
		analysis.Summary = fmt.Sprintf("Road risk graded %s.", level)

	case panel.RoleNews:
		sentiment, closures := newsRead(snap)
		analysis.News = &panel.NewsFindings{
			Sentiment:        sentiment,
			NeighborClosures: closures,
			Headlines:        headlines(snap, closures),
		}
		analysis.Summary = fmt.Sprintf("Local sentiment reads %s with %d neighboring closures.",
			sentiment, closures)

	case panel.RoleInfrastructure:
		hours := clearHours(snap)
		analysis.Infrastructure = &panel.InfrastructureFindings{
			HoursToClearBusRoutes: hours,
			FleetReadiness:        clampPct(92 - snap.WindSpeedMPH + a.jitter(2)),
		}
		analysis.Summary = fmt.Sprintf("Bus routes clear roughly %.1f hours after snowfall ends.", hours)

	case panel.RolePowerGrid:
		level := gridRisk(snap)
		analysis.PowerGrid = &panel.PowerGridFindings{
			SchoolFacilityRisk: level,
			OutageProbability:  outageProbability(level),
		}
		analysis.Summary = fmt.Sprintf("School facility outage risk graded %s.", level)

	case panel.RoleWebVerifier:
		confirmed := snap.FeelsLikeF <= -20 || snap.WindChillF <= -20
		discrepancy := absFloat(snap.MorningSnowChance-snap.OvernightSnowChance) > 50
		analysis.Web = &panel.WebFindings{
			ExtremeColdConfirmed: confirmed,
			MajorDiscrepancy:     discrepancy,
			SourcesChecked:       4 + int(a.jitter(2)+2)/2,
		}
		analysis.Summary = webSummary(confirmed, discrepancy)
	}

	return analysis, nil
}

func (a *analyst) Deliberate(ctx context.Context, req panel.DeliberationRequest) (*panel.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	anchor := panel.ExtractProbability(a.role, req.Own.Analysis)

	probability := anchor + a.jitter(3)
	if len(req.PriorRound) > 0 {
		prior := anchor
		var sum float64
		for _, p := range req.PriorRound {
			sum += p.Probability
			if p.Role == a.role {
				prior = p.Probability
			}
		}
		mean := sum / float64(len(req.PriorRound))
		hold := stubbornness[a.role]
		probability = prior*hold + mean*(1-hold) + a.jitter(1.5)
	}
	probability = clampPct(probability)

	confidence := clampPct(min(55+float64(req.Round)*5+a.jitter(3), 95))

	pos := &panel.Position{
		Role:        a.role,
		Probability: probability,
		Confidence:  confidence,
		Rationale:   a.rationale(req, probability),
		KeyFactors:  keyFactors(a.role, req.Weather.Snapshot),
		Challenges:  a.challenges(req, probability),
		StatedAt:    time.Now().UTC(),
	}
	return pos, pos.Validate()
}

// challenges flags the single peer furthest outside the consensus band.
func (a *analyst) challenges(req panel.DeliberationRequest, own float64) []panel.Challenge {
	band := req.ConsensusBand
	if band <= 0 {
		band = 20
	}

	var target panel.Role
	var worst float64
	for _, p := range req.PriorRound {
		if p.Role == a.role {
			continue
		}
		if gap := absFloat(p.Probability - own); gap > band && gap > worst {
			worst = gap
			target = p.Role
		}
	}
	if target == "" {
		return nil
	}
	return []panel.Challenge{{
		Target: target,
		Claim: fmt.Sprintf("%s sits %.0f points from the %s read; one of the two overweights its signal.",
			target.DisplayName(), worst, a.role.DisplayName()),
	}}
}

func (a *analyst) rationale(req panel.DeliberationRequest, probability float64) string {
	if len(req.PriorRound) == 0 {
		return fmt.Sprintf("Initial %s read puts closure odds near %.0f%%.",
			a.role.DisplayName(), probability)
	}
	return fmt.Sprintf("Holding the %s signal while weighing round %d peer positions; settling at %.0f%%.",
		a.role.DisplayName(), req.Round-1, probability)
}

func (a *analyst) Consult(ctx context.Context, req panel.ConsultRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	anchor := panel.ExtractProbability(a.role, req.Prior.Analysis)
	if len(req.PeerViews) > 0 {
		agrees := 0
		for _, peer := range req.PeerViews {
			peerP := panel.ExtractProbability(peer.Role, peer.Analysis)
			if absFloat(peerP-anchor) <= 20 {
				agrees++
			}
		}
		return fmt.Sprintf("%s view holds at %.0f%%; %d of %d peer readings fall within twenty points. Question considered: %s",
			a.role.DisplayName(), anchor, agrees, len(req.PeerViews), req.Question), nil
	}
	return fmt.Sprintf("%s view holds at %.0f%% on review. Question considered: %s",
		a.role.DisplayName(), anchor, req.Question), nil
}

// ============================================================================
// Deterministic finding derivations
// ============================================================================

func (a *analyst) historyFindings(snap weather.Snapshot) *panel.HistoryFindings {
	severity := severityIndex(snap)
	patterns := []panel.HistoricalPattern{
		{
			Season:      "2022-23",
			Description: "Closest analog by snowfall and temperature",
			Similarity:  clampPct(82 + a.jitter(4)),
			SnowDayRate: clampPct(severity + a.jitter(4)),
		},
		{
			Season:      "2019-20",
			Description: "Similar accumulation, milder overnight low",
			Similarity:  clampPct(64 + a.jitter(4)),
			SnowDayRate: clampPct(severity - 12 + a.jitter(4)),
		},
		{
			Season:      "2016-17",
			Description: "Comparable wind profile, less snow",
			Similarity:  clampPct(51 + a.jitter(4)),
			SnowDayRate: clampPct(severity - 20 + a.jitter(4)),
		},
	}
	return &panel.HistoryFindings{SimilarPatterns: patterns, YearsOfRecord: 25}
}

// severityIndex folds the snapshot into one 0-100 closure propensity that the
// simulated findings orbit around.
func severityIndex(snap weather.Snapshot) float64 {
	score := snap.MorningSnowChance*0.35 + snap.OvernightSnowChance*0.15

	switch {
	case snap.ExpectedSnowfallIn >= 8:
		score += 25
	case snap.ExpectedSnowfallIn >= 6:
		score += 16
	case snap.ExpectedSnowfallIn >= 3:
		score += 8
	}
	switch {
	case snap.FeelsLikeF <= -20 || snap.WindChillF <= -20:
		score += 22
	case snap.FeelsLikeF <= -15 || snap.WindChillF <= -15:
		score += 14
	case snap.FeelsLikeF <= 0:
		score += 5
	}
	if snap.IceRisk {
		score += 12
	}
	if snap.WindSpeedMPH >= 30 {
		score += 8
	} else if snap.WindSpeedMPH >= 20 {
		score += 4
	}
	if snap.VisibilityMiles > 0 && snap.VisibilityMiles <= 0.5 {
		score += 6
	}

	return clampPct(score)
}

func intensityScore(snap weather.Snapshot) float64 {
	score := 1 + snap.ExpectedSnowfallIn*0.6 + snap.WindSpeedMPH*0.05
	if score > 10 {
		return 10
	}
	return score
}

func roadRisk(snap weather.Snapshot) panel.RiskLevel {
	switch {
	case snap.ExpectedSnowfallIn >= 10 || (snap.IceRisk && snap.VisibilityMiles <= 1):
		return panel.RiskSevere
	case snap.ExpectedSnowfallIn >= 6 || snap.IceRisk || snap.WindChillF <= -15:
		return panel.RiskHigh
	case snap.ExpectedSnowfallIn >= 2 || snap.VisibilityMiles <= 2:
		return panel.RiskModerate
	default:
		return panel.RiskLow
	}
}

func riskScore(level panel.RiskLevel) float64 {
	switch level {
	case panel.RiskSevere:
		return 9.5
	case panel.RiskHigh:
		return 7.5
	case panel.RiskModerate:
		return 5
	default:
		return 2
	}
}

func safetyConcerns(snap weather.Snapshot) []string {
	var concerns []string
	if snap.IceRisk {
		concerns = append(concerns, "untreated ice on secondary roads")
	}
	if snap.VisibilityMiles <= 1 {
		concerns = append(concerns, "near-whiteout visibility on bus routes")
	}
	if snap.WindChillF <= -15 {
		concerns = append(concerns, "frostbite exposure at bus stops")
	}
	return concerns
}

func newsRead(snap weather.Snapshot) (panel.Sentiment, int) {
	severity := severityIndex(snap)
	switch {
	case severity >= 70:
		return panel.SentimentExpectingClosure, 2
	case severity >= 55:
		return panel.SentimentUncertain, 1
	case severity >= 30:
		return panel.SentimentNoBuzz, 0
	default:
		return panel.SentimentExpectingSchool, 0
	}
}

func headlines(snap weather.Snapshot, closures int) []string {
	var hs []string
	if snap.ExpectedSnowfallIn >= 6 {
		hs = append(hs, "Plows staged ahead of overnight accumulation")
	}
	if closures > 0 {
		hs = append(hs, fmt.Sprintf("%d neighboring districts announce early closure", closures))
	}
	for _, alert := range snap.Alerts {
		hs = append(hs, fmt.Sprintf("Weather service issues %s", alert))
	}
	return hs
}

func clearHours(snap weather.Snapshot) float64 {
	if snap.ExpectedSnowfallIn < 1 {
		return 0
	}
	hours := snap.ExpectedSnowfallIn / 2.5
	if snap.IceRisk {
		hours += 2
	}
	if snap.WindSpeedMPH >= 25 {
		hours += 1 // drifting reopens cleared lanes
	}
	return hours
}

func gridRisk(snap weather.Snapshot) panel.RiskLevel {
	switch {
	case snap.IceRisk && snap.WindSpeedMPH >= 30:
		return panel.RiskSevere
	case snap.WindSpeedMPH >= 30 || (snap.IceRisk && snap.WindSpeedMPH >= 20):
		return panel.RiskHigh
	case snap.WindSpeedMPH >= 20 || snap.IceRisk:
		return panel.RiskModerate
	default:
		return panel.RiskLow
	}
}

func outageProbability(level panel.RiskLevel) float64 {
	switch level {
	case panel.RiskSevere:
		return 70
	case panel.RiskHigh:
		return 45
	case panel.RiskModerate:
		return 20
	default:
		return 5
	}
}

func webSummary(confirmed, discrepancy bool) string {
	switch {
	case confirmed:
		return "Independent sources confirm extreme cold readings."
	case discrepancy:
		return "Major discrepancy between forecast windows across sources."
	default:
		return "Forecast claims consistent across checked sources."
	}
}

func keyFactors(role panel.Role, snap weather.Snapshot) []string {
	switch role {
	case panel.RoleMeteorology:
		return []string{
			fmt.Sprintf("%.1f inches expected", snap.ExpectedSnowfallIn),
			fmt.Sprintf("%.0f%% morning snow chance", snap.MorningSnowChance),
		}
	case panel.RoleSafety:
		return []string{fmt.Sprintf("wind chill %.0f°F", snap.WindChillF)}
	case panel.RoleInfrastructure:
		return []string{fmt.Sprintf("wind %.0f mph", snap.WindSpeedMPH)}
	case panel.RolePowerGrid:
		if snap.IceRisk {
			return []string{"ice accretion on lines"}
		}
		return []string{fmt.Sprintf("wind %.0f mph", snap.WindSpeedMPH)}
	default:
		return nil
	}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
