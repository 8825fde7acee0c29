// Package team defines the closed set of competing fanbases.
package team

import (
	"fmt"
	"strings"
)

// Team identifies one of the three competing fanbases. The set is closed;
// anything outside it is a validation error, never a silent no-op.
type Team string

// The three teams, by their short document-field identifiers.
const (
	GS Team = "gs"
	FB Team = "fb"
	TS Team = "ts"
)

// Display names used in winner announcements and the scoreboard.
const (
	gsName = "GALATASARAY"
	fbName = "FENERBAHÇE"
	tsName = "BEŞİKTAŞ"
)

// All returns the teams in scoreboard order.
func All() []Team {
	return []Team{GS, FB, TS}
}

// Parse maps an identifier to a Team. It accepts the short ids used in
// score documents ("gs", "fb", "ts"), case-insensitively.
func Parse(s string) (Team, error) {
	switch Team(strings.ToLower(strings.TrimSpace(s))) {
	case GS:
		return GS, nil
	case FB:
		return FB, nil
	case TS:
		return TS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTeam, s)
	}
}

// String returns the short identifier.
func (t Team) String() string {
	return string(t)
}

// DisplayName returns the full uppercase club name.
func (t Team) DisplayName() string {
	switch t {
	case GS:
		return gsName
	case FB:
		return fbName
	case TS:
		return tsName
	default:
		return string(t)
	}
}

// Valid reports whether t is one of the three known teams.
func (t Team) Valid() bool {
	switch t {
	case GS, FB, TS:
		return true
	default:
		return false
	}
}
