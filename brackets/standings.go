package brackets

import (
	"sort"

	"github.com/bracketops/tournament-engine/models"
)

// SortStandings orders group rows by points, then wins, and rewrites their
// 1-based places. The sort is stable, so rows with identical records keep
// their seeded order and rerunning it after any result is idempotent.
func SortStandings(rows []models.GroupRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := rows[i].Points(), rows[j].Points()
		if pi != pj {
			return pi > pj
		}
		return rows[i].Wins > rows[j].Wins
	})
	for i := range rows {
		rows[i].Place = i + 1
	}
}
