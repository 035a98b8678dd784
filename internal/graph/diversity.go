package graph

import "sort"

// VamanaDiversityProvider implements the alpha-relaxed occlusion rule:
// walking candidates from best score to worst, a candidate is kept
// only if no already-selected neighbor is "in the way" — i.e. no
// selected neighbor scores against the candidate more favorably than
// alpha times the candidate's own score against the query/node being
// built. alpha==1 is the strict (no relaxation) Relative Neighborhood
// Graph rule; alpha>1 relaxes it, admitting a few more long-range
// edges for better graph connectivity, matching the "alpha" knob in
// the source's RNG-heuristic neighbor selection.
type VamanaDiversityProvider struct{}

// Select returns up to maxDegree candidates, diverse under alpha.
// candidates need not be pre-sorted; Select sorts its own copy
// descending by score before the occlusion pass.
func (VamanaDiversityProvider) Select(candidates []Pair, maxDegree int, alpha float32, score ScoreFunc) []Pair {
	sorted := append([]Pair(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	selected := make([]Pair, 0, maxDegree)
	for _, candidate := range sorted {
		if len(selected) >= maxDegree {
			break
		}
		if isDiverse(candidate, selected, alpha, score) {
			selected = append(selected, candidate)
		}
	}
	return selected
}

func isDiverse(candidate Pair, selected []Pair, alpha float32, score ScoreFunc) bool {
	for _, s := range selected {
		occluding := score(candidate.Ordinal, s.Ordinal)
		if occluding > alpha*candidate.Score {
			return false
		}
	}
	return true
}
