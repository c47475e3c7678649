package alerter

import (
	"cmp"
	"slices"

	"TrafficSentinel/internal/model"
)

func topByScore(rows []model.ScoredRow, n int) []model.ScoredRow {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.ScoredRow) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
