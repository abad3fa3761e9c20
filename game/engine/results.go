package engine

import "sort"

// Result is one line of an end-of-round ranking.
type Result struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
	Stats    any    `json:"stats,omitempty"`
}

// ResultsFor builds unranked results from the roster.
func ResultsFor(players []*Player) []Result {
	results := make([]Result, 0, len(players))
	for _, p := range players {
		results = append(results, Result{
			PlayerID: p.ID,
			Name:     p.Name,
			Color:    p.Color,
			Score:    p.Report.Score,
		})
	}
	return results
}

// Rank sorts results by descending score, keeping input order among equal
// scores, and assigns competition ranks (1, 2, 2, 4).
func Rank(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		if i > 0 && results[i].Score == results[i-1].Score {
			results[i].Rank = results[i-1].Rank
			continue
		}
		results[i].Rank = i + 1
	}
	return results
}
