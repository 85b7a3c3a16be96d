package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

func stormContext() *weather.Context {
	return &weather.Context{
		RunID:    "run-bench",
		Location: "Rochester, NY",
		Snapshot: weather.Snapshot{
			TemperatureF: 18, FeelsLikeF: 4, WindChillF: 2, OvernightLowF: 10,
			MorningSnowChance: 80, OvernightSnowChance: 85, ExpectedSnowfallIn: 9,
			WindSpeedMPH: 25, VisibilityMiles: 0.5,
			Alerts: []string{"Winter Storm Warning"},
		},
		FetchedAt: time.Now(),
	}
}

// ============================================================================
// Bench Construction Tests
// ============================================================================

func TestBench_CoversAllRoles(t *testing.T) {
	bench := Bench(WithSeed(11))

	require.Len(t, bench, len(panel.AllRoles()))
	for i, role := range panel.AllRoles() {
		assert.Equal(t, role, bench[i].Role())
	}
}

func TestNew_UnknownRole(t *testing.T) {
	_, err := New(panel.Role("tarot"))
	assert.Error(t, err)
}

// ============================================================================
// Determinism Tests
// ============================================================================

func TestBench_DeterministicForSeed(t *testing.T) {
	wx := stormContext()

	runBench := func() map[panel.Role]*panel.Analysis {
		out := make(map[panel.Role]*panel.Analysis)
		for _, a := range Bench(WithSeed(42)) {
			analysis, err := a.Analyze(context.Background(), wx)
			require.NoError(t, err)
			out[a.Role()] = analysis
		}
		return out
	}

	first := runBench()
	second := runBench()

	for _, role := range panel.AllRoles() {
		assert.Equal(t, first[role].Summary, second[role].Summary, "role %s summaries diverged", role)
		assert.Equal(t,
			panel.ExtractProbability(role, first[role]),
			panel.ExtractProbability(role, second[role]),
			"role %s extracted probabilities diverged", role)
	}
}

// ============================================================================
// Analysis Shape Tests
// ============================================================================

func TestAnalyze_SectionMatchesRole(t *testing.T) {
	wx := stormContext()

	for _, a := range Bench(WithSeed(7)) {
		analysis, err := a.Analyze(context.Background(), wx)
		require.NoError(t, err)
		require.Equal(t, a.Role(), analysis.Role)
		assert.NotEmpty(t, analysis.Summary)

		switch a.Role() {
		case panel.RoleMeteorology:
			require.NotNil(t, analysis.Meteorology)
			assert.Equal(t, 9.0, analysis.Meteorology.ExpectedSnowfallIn)
		case panel.RoleHistory:
			require.NotNil(t, analysis.History)
			assert.NotEmpty(t, analysis.History.SimilarPatterns)
		case panel.RoleSafety:
			require.NotNil(t, analysis.Safety)
			assert.Equal(t, panel.RiskHigh, analysis.Safety.RoadRiskLevel)
		case panel.RoleNews:
			require.NotNil(t, analysis.News)
		case panel.RoleInfrastructure:
			require.NotNil(t, analysis.Infrastructure)
			assert.Greater(t, analysis.Infrastructure.HoursToClearBusRoutes, 2.0)
		case panel.RolePowerGrid:
			require.NotNil(t, analysis.PowerGrid)
		case panel.RoleWebVerifier:
			require.NotNil(t, analysis.Web)
			assert.False(t, analysis.Web.ExtremeColdConfirmed)
		}
	}
}

func TestAnalyze_ExtremeColdConfirmedByVerifier(t *testing.T) {
	wx := &weather.Context{
		RunID:    "run-cold",
		Location: "Fargo, ND",
		Snapshot: weather.Snapshot{FeelsLikeF: -24, WindChillF: -27, OvernightLowF: -18},
	}

	verifier, err := New(panel.RoleWebVerifier, WithSeed(3))
	require.NoError(t, err)

	analysis, err := verifier.Analyze(context.Background(), wx)
	require.NoError(t, err)
	require.NotNil(t, analysis.Web)
	assert.True(t, analysis.Web.ExtremeColdConfirmed)
}

// ============================================================================
// Deliberation Tests
// ============================================================================

func TestDeliberate_FirstRoundAnchorsOnAnalysis(t *testing.T) {
	wx := stormContext()
	met, err := New(panel.RoleMeteorology, WithSeed(5))
	require.NoError(t, err)

	analysis, err := met.Analyze(context.Background(), wx)
	require.NoError(t, err)

	pos, err := met.Deliberate(context.Background(), panel.DeliberationRequest{
		Weather: wx,
		Own:     panel.Outcome{Role: panel.RoleMeteorology, Analysis: analysis},
		Round:   1,
	})
	require.NoError(t, err)

	anchor := panel.ExtractProbability(panel.RoleMeteorology, analysis)
	assert.InDelta(t, anchor, pos.Probability, 3.5, "round one stays near the extracted anchor")
	assert.NoError(t, pos.Validate())
	assert.False(t, pos.Fallback)
}

func TestDeliberate_LaterRoundsMoveTowardMean(t *testing.T) {
	wx := stormContext()
	news, err := New(panel.RoleNews, WithSeed(5))
	require.NoError(t, err)

	analysis, err := news.Analyze(context.Background(), wx)
	require.NoError(t, err)

	prior := []panel.Position{
		{Role: panel.RoleNews, Probability: 30},
		{Role: panel.RoleMeteorology, Probability: 90},
		{Role: panel.RoleSafety, Probability: 90},
	}

	pos, err := news.Deliberate(context.Background(), panel.DeliberationRequest{
		Weather:       wx,
		Own:           panel.Outcome{Role: panel.RoleNews, Analysis: analysis},
		PriorRound:    prior,
		Round:         2,
		ConsensusBand: 20,
	})
	require.NoError(t, err)

	// News holds 30% of its prior 30 and takes 70% of the mean 70 ⇒ ~58.
	assert.Greater(t, pos.Probability, 45.0, "low-stubbornness role should be pulled up by peers")
	assert.Less(t, pos.Probability, 70.0)
}

func TestDeliberate_ChallengesOutlier(t *testing.T) {
	wx := stormContext()
	met, err := New(panel.RoleMeteorology, WithSeed(5))
	require.NoError(t, err)

	analysis, err := met.Analyze(context.Background(), wx)
	require.NoError(t, err)

	prior := []panel.Position{
		{Role: panel.RoleMeteorology, Probability: 90},
		{Role: panel.RoleNews, Probability: 20},
		{Role: panel.RoleSafety, Probability: 88},
	}

	pos, err := met.Deliberate(context.Background(), panel.DeliberationRequest{
		Weather:       wx,
		Own:           panel.Outcome{Role: panel.RoleMeteorology, Analysis: analysis},
		PriorRound:    prior,
		Round:         2,
		ConsensusBand: 20,
	})
	require.NoError(t, err)

	require.Len(t, pos.Challenges, 1)
	assert.Equal(t, panel.RoleNews, pos.Challenges[0].Target)
	assert.NotEmpty(t, pos.Challenges[0].Claim)
}

func TestDeliberate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	met, err := New(panel.RoleMeteorology, WithSeed(5))
	require.NoError(t, err)

	_, err = met.Deliberate(ctx, panel.DeliberationRequest{Weather: stormContext(), Round: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Consultation Tests
// ============================================================================

func TestConsult(t *testing.T) {
	wx := stormContext()
	safety, err := New(panel.RoleSafety, WithSeed(5))
	require.NoError(t, err)

	analysis, err := safety.Analyze(context.Background(), wx)
	require.NoError(t, err)

	answer, err := safety.Consult(context.Background(), panel.ConsultRequest{
		Weather:  wx,
		Prior:    panel.Outcome{Role: panel.RoleSafety, Analysis: analysis},
		Question: "Do untreated secondary roads change the risk picture?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "Road Safety")
	assert.Contains(t, answer, "untreated secondary roads")
}

func TestConsult_CrossCheckCountsAgreement(t *testing.T) {
	wx := stormContext()
	verifier, err := New(panel.RoleWebVerifier, WithSeed(5))
	require.NoError(t, err)

	own, err := verifier.Analyze(context.Background(), wx)
	require.NoError(t, err)

	peer := &panel.Analysis{
		Role:   panel.RoleSafety,
		Safety: &panel.SafetyFindings{RoadRiskLevel: panel.RiskModerate},
	}

	answer, err := verifier.Consult(context.Background(), panel.ConsultRequest{
		Weather:   wx,
		Prior:     panel.Outcome{Role: panel.RoleWebVerifier, Analysis: own},
		PeerViews: []panel.Outcome{{Role: panel.RoleSafety, Analysis: peer}},
		Question:  "Does the safety read hold up against the wider web?",
	})
	require.NoError(t, err)
	assert.Contains(t, answer, "1 of 1")
}
