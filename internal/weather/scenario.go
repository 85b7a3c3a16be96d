package weather

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Scenario is one entry in the fixed catalog of plausible winter conditions
// used when no weather provider is configured or reachable.
type Scenario struct {
	Name     string   `json:"name"`
	Snapshot Snapshot `json:"snapshot"`
}

// Scenarios returns the catalog in a fixed order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "blizzard", Snapshot: Snapshot{
			TemperatureF: 18, FeelsLikeF: 5, WindChillF: 3, OvernightLowF: 10,
			MorningSnowChance: 85, OvernightSnowChance: 90, ExpectedSnowfallIn: 14,
			WindSpeedMPH: 35, VisibilityMiles: 0.25,
			Alerts: []string{"Blizzard Warning"},
		}},
		{Name: "heavy_snow", Snapshot: Snapshot{
			TemperatureF: 24, FeelsLikeF: 15, WindChillF: 13, OvernightLowF: 18,
			MorningSnowChance: 70, OvernightSnowChance: 75, ExpectedSnowfallIn: 7.5,
			WindSpeedMPH: 20, VisibilityMiles: 0.5,
			Alerts: []string{"Winter Storm Warning"},
		}},
		{Name: "deep_freeze", Snapshot: Snapshot{
			TemperatureF: -8, FeelsLikeF: -26, WindChillF: -28, OvernightLowF: -18,
			MorningSnowChance: 10, OvernightSnowChance: 5, ExpectedSnowfallIn: 0,
			WindSpeedMPH: 22, VisibilityMiles: 8,
			Alerts: []string{"Extreme Cold Warning"},
		}},
		{Name: "ice_storm", Snapshot: Snapshot{
			TemperatureF: 29, FeelsLikeF: 21, WindChillF: 20, OvernightLowF: 26,
			MorningSnowChance: 45, OvernightSnowChance: 55, ExpectedSnowfallIn: 0.8,
			WindSpeedMPH: 18, VisibilityMiles: 1.5, IceRisk: true,
			Alerts: []string{"Ice Storm Warning"},
		}},
		{Name: "flurries", Snapshot: Snapshot{
			TemperatureF: 28, FeelsLikeF: 21, WindChillF: 20, OvernightLowF: 22,
			MorningSnowChance: 35, OvernightSnowChance: 30, ExpectedSnowfallIn: 1.2,
			WindSpeedMPH: 12, VisibilityMiles: 5,
		}},
		{Name: "clear_cold", Snapshot: Snapshot{
			TemperatureF: 15, FeelsLikeF: 6, WindChillF: 5, OvernightLowF: 8,
			MorningSnowChance: 5, OvernightSnowChance: 5, ExpectedSnowfallIn: 0,
			WindSpeedMPH: 10, VisibilityMiles: 10,
		}},
		{Name: "midwinter_thaw", Snapshot: Snapshot{
			TemperatureF: 41, FeelsLikeF: 37, WindChillF: 37, OvernightLowF: 33,
			MorningSnowChance: 10, OvernightSnowChance: 5, ExpectedSnowfallIn: 0,
			WindSpeedMPH: 8, VisibilityMiles: 10,
		}},
	}
}

// ScenarioGenerator is a Source that synthesizes snapshots from the scenario
// catalog. The same seed always yields the same sequence, so tests and replay
// runs are deterministic. Force pins every fetch to one named scenario.
type ScenarioGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	forced *Scenario
}

// NewScenarioGenerator creates a generator from seed. A zero seed falls back
// to the current time.
func NewScenarioGenerator(seed int64) *ScenarioGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ScenarioGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Reseed restarts the sequence from a new seed. A zero seed falls back to the
// current time.
func (g *ScenarioGenerator) Reseed(seed int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g.mu.Lock()
	g.rng = rand.New(rand.NewSource(seed))
	g.mu.Unlock()
}

// Force pins the generator to the named scenario for all subsequent fetches.
func (g *ScenarioGenerator) Force(name string) error {
	for _, sc := range Scenarios() {
		if sc.Name == name {
			g.mu.Lock()
			g.forced = &sc
			g.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown weather scenario %q", name)
}

// Fetch returns a snapshot drawn from the catalog with small seeded jitter.
func (g *ScenarioGenerator) Fetch(ctx context.Context, location string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var snap Snapshot
	if g.forced != nil {
		snap = g.forced.Snapshot
	} else {
		catalog := Scenarios()
		snap = catalog[g.rng.Intn(len(catalog))].Snapshot
	}

	// Jitter is bounded so a scenario never crosses its own hazard lines.
	jitter := func(f float64) float64 { return f + (g.rng.Float64()*2-1)*2 }
	snap.TemperatureF = jitter(snap.TemperatureF)
	snap.FeelsLikeF = jitter(snap.FeelsLikeF)
	snap.WindChillF = jitter(snap.WindChillF)
	snap.OvernightLowF = jitter(snap.OvernightLowF)
	snap.MorningSnowChance = clampPct(snap.MorningSnowChance + (g.rng.Float64()*2-1)*5)
	snap.OvernightSnowChance = clampPct(snap.OvernightSnowChance + (g.rng.Float64()*2-1)*5)

	return &snap, nil
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
