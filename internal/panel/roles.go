// Package panel provides the specialist panel for closure prediction:
// the closed set of specialist roles, their structured analyses, the
// concurrent specialist stage, and the deterministic position extractor
// used when a specialist's deliberation call fails.
package panel

import "fmt"

// Role identifies one specialist on the panel. The set is closed: behavior
// is selected through lookup tables keyed by Role, and registration rejects
// anything outside the set.
type Role string

const (
	RoleMeteorology    Role = "meteorology"    // Forecast timing, snowfall totals
	RoleHistory        Role = "history"        // Similar historical patterns
	RoleSafety         Role = "safety"         // Road and transport risk
	RoleNews           Role = "news"           // Local chatter, neighboring districts
	RoleInfrastructure Role = "infrastructure" // Plow fleet, bus route readiness
	RolePowerGrid      Role = "powerGrid"      // Outage risk for school facilities
	RoleWebVerifier    Role = "webVerifier"    // Cross-checks claims against the wider web
)

// AllRoles returns every panel role in its fixed canonical order.
func AllRoles() []Role {
	return []Role{
		RoleMeteorology,
		RoleHistory,
		RoleSafety,
		RoleNews,
		RoleInfrastructure,
		RolePowerGrid,
		RoleWebVerifier,
	}
}

var roleDisplayNames = map[Role]string{
	RoleMeteorology:    "Meteorology",
	RoleHistory:        "Historical Patterns",
	RoleSafety:         "Road Safety",
	RoleNews:           "Local News",
	RoleInfrastructure: "Infrastructure",
	RolePowerGrid:      "Power Grid",
	RoleWebVerifier:    "Web Verification",
}

// Valid reports whether r is one of the panel roles.
func (r Role) Valid() bool {
	_, ok := roleDisplayNames[r]
	return ok
}

// DisplayName returns the human-readable name for the role.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

// Errors for panel operations.
var (
	ErrUnknownRole   = PanelError{Code: "UNKNOWN_ROLE", Message: "role is not part of the specialist panel"}
	ErrDuplicateRole = PanelError{Code: "DUPLICATE_ROLE", Message: "role is already registered on the panel"}
	ErrNoAnalysts    = PanelError{Code: "NO_ANALYSTS", Message: "panel has no registered analysts"}
)

// PanelError represents a panel-specific error.
type PanelError struct {
	Code    string
	Message string
}

func (e PanelError) Error() string {
	return e.Message
}

// WithDetail returns a copy of the error with extra context appended.
func (e PanelError) WithDetail(detail string) PanelError {
	return PanelError{Code: e.Code, Message: fmt.Sprintf("%s: %s", e.Message, detail)}
}
