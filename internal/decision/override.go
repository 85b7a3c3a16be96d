package decision

import (
	"strings"

	"dev.frostline.agent/internal/panel"
	"dev.frostline.agent/internal/weather"
)

// Cold-override thresholds in degrees Fahrenheit. Two independent extreme-cold
// flags (the snapshot's own cold signal plus the web verifier's confirmation)
// trigger the extreme floor even when no single reading crosses a line.
const (
	extremeFeelsLikeF   = -20.0
	extremeWindChillF   = -20.0
	extremeOvernightF   = -15.0
	dangerousFeelsLikeF = -15.0
	dangerousWindChillF = -15.0
	dangerousOvernightF = -10.0

	extremeFloor   = 95.0
	dangerousFloor = 50.0
)

// Fixed rationale prefixes. ApplyColdOverride prepends each at most once, so
// re-application cannot stack them.
const (
	extremeRationale   = "EXTREME COLD: life-threatening wind chill forces closure regardless of snowfall."
	dangerousRationale = "DANGEROUS COLD: severe cold raises the closure floor."
)

// Floor names which cold-safety floor the readings demand.
type Floor string

const (
	FloorExtreme   Floor = "extreme"
	FloorDangerous Floor = "dangerous"
)

// ActiveFloor reports which cold floor applies to the readings, if any. web
// may be nil when the verifier did not run.
func ActiveFloor(snap weather.Snapshot, web *panel.WebFindings) (Floor, bool) {
	switch {
	case extremeCold(snap, web):
		return FloorExtreme, true
	case dangerousCold(snap):
		return FloorDangerous, true
	default:
		return "", false
	}
}

// ApplyColdOverride raises the prediction to the cold-safety floor that the
// physical readings demand. It never lowers the probability, applies the same
// result on repeat calls, and is independent of how the coordinator derived
// its number.
func ApplyColdOverride(p *Prediction, snap weather.Snapshot, web *panel.WebFindings) {
	if p == nil {
		return
	}
	switch floor, _ := ActiveFloor(snap, web); floor {
	case FloorExtreme:
		raiseFloor(p, extremeFloor, extremeRationale)
	case FloorDangerous:
		raiseFloor(p, dangerousFloor, dangerousRationale)
	}
}

func extremeCold(snap weather.Snapshot, web *panel.WebFindings) bool {
	if snap.FeelsLikeF <= extremeFeelsLikeF ||
		snap.WindChillF <= extremeWindChillF ||
		snap.OvernightLowF <= extremeOvernightF {
		return true
	}
	return snap.ColdSignal() && web != nil && web.ExtremeColdConfirmed
}

func dangerousCold(snap weather.Snapshot) bool {
	return snap.FeelsLikeF <= dangerousFeelsLikeF ||
		snap.WindChillF <= dangerousWindChillF ||
		snap.OvernightLowF <= dangerousOvernightF
}

func raiseFloor(p *Prediction, floor float64, rationale string) {
	p.Probability = max(p.Probability, floor)
	if strings.Contains(p.Rationale, rationale) {
		return
	}
	if p.Rationale == "" {
		p.Rationale = rationale
		return
	}
	p.Rationale = rationale + " " + p.Rationale
}
