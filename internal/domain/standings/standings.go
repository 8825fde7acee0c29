// Package standings computes the winner of a day from per-team bottle counts.
package standings

import "github.com/ekurt/bottlederby/internal/domain/team"

// TieName is the announced result when no single team holds the maximum.
const TieName = "BERABERE"

// Winner is the announced result for a day.
type Winner struct {
	Team  string `json:"team" bson:"team"`
	Score int    `json:"score" bson:"score"`
}

// Compute determines the winner from the three per-team sums. A strict
// maximum wins with its score; a shared maximum (including all-zero) is a
// tie carrying the shared score. Pure function: no randomness, no history.
func Compute(gs, fb, ts int) Winner {
	max := gs
	if fb > max {
		max = fb
	}
	if ts > max {
		max = ts
	}

	var holder team.Team
	holders := 0
	if gs == max {
		holder = team.GS
		holders++
	}
	if fb == max {
		holder = team.FB
		holders++
	}
	if ts == max {
		holder = team.TS
		holders++
	}

	if holders != 1 {
		return Winner{Team: TieName, Score: max}
	}
	return Winner{Team: holder.DisplayName(), Score: max}
}
