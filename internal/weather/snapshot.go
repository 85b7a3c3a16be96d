// Package weather provides the weather snapshot model, the provider sources
// that produce snapshots, and the immutable per-run context handed to the
// specialist panel.
package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot holds the forecast fields the specialist panel consumes.
// All temperatures are °F, snowfall is inches, probabilities are 0-100.
type Snapshot struct {
	TemperatureF        float64  `json:"temperature_f"`
	FeelsLikeF          float64  `json:"feels_like_f"`
	WindChillF          float64  `json:"wind_chill_f"`
	OvernightLowF       float64  `json:"overnight_low_f"`
	MorningSnowChance   float64  `json:"morning_snow_chance"`
	OvernightSnowChance float64  `json:"overnight_snow_chance"`
	ExpectedSnowfallIn  float64  `json:"expected_snowfall_in"`
	WindSpeedMPH        float64  `json:"wind_speed_mph"`
	VisibilityMiles     float64  `json:"visibility_miles"`
	IceRisk             bool     `json:"ice_risk"`
	Alerts              []string `json:"alerts,omitempty"`
}

// ColdSignal reports whether the snapshot itself carries a cold hazard
// (feels-like or wind chill at or below the dangerous-cold line). It is one
// of the two independent signals the extreme-cold floor can combine.
func (s Snapshot) ColdSignal() bool {
	return s.FeelsLikeF <= -15 || s.WindChillF <= -15
}

// Context is the immutable input bundle for one prediction run. It is created
// once by BuildContext, read by every downstream stage, and never mutated.
// Concurrent runs must each build their own Context.
type Context struct {
	RunID     string    `json:"run_id"`
	Location  string    `json:"location"`
	Snapshot  Snapshot  `json:"snapshot"`
	FetchedAt time.Time `json:"fetched_at"`
}

// BuildContext fetches current conditions for location from src and freezes
// them into a run context.
func BuildContext(ctx context.Context, src Source, location string) (*Context, error) {
	if location == "" {
		return nil, fmt.Errorf("build weather context: location is required")
	}
	if src == nil {
		return nil, fmt.Errorf("build weather context: no source configured")
	}

	snap, err := src.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("build weather context for %q: %w", location, err)
	}

	return &Context{
		RunID:     uuid.New().String(),
		Location:  location,
		Snapshot:  *snap,
		FetchedAt: time.Now().UTC(),
	}, nil
}
