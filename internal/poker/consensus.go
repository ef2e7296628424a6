package poker

import "math"

// Consensus is the modal numeric vote and its share of the numeric voters.
type Consensus struct {
	Value      int `json:"value"`
	Percentage int `json:"percentage"`
}

// ComputeConsensus finds the modal vote among non-observers who voted with
// points. Ties go to the value that first reached the winning count while
// walking the roster in join order. The percentage is rounded to an integer.
// The second result is false when nobody voted with points.
func ComputeConsensus(participants []Participant) (Consensus, bool) {
	counts := make(map[int]int)
	total := 0
	best := Consensus{}
	bestCount := 0

	for _, p := range participants {
		if p.IsObserver || !p.Vote.Numeric() {
			continue
		}
		total++
		counts[p.Vote.Points]++
		if counts[p.Vote.Points] > bestCount {
			bestCount = counts[p.Vote.Points]
			best.Value = p.Vote.Points
		}
	}

	if total == 0 {
		return Consensus{}, false
	}
	best.Percentage = int(math.Round(float64(bestCount) / float64(total) * 100))
	return best, true
}

// HasFullConsensus reports whether at least two voters exist, all of them
// have voted, and every numeric vote agrees.
func HasFullConsensus(s *Session) bool {
	if len(s.Voters()) < 2 || !s.AllVoted() {
		return false
	}
	consensus, ok := ComputeConsensus(s.Participants)
	return ok && consensus.Percentage == 100
}

// Average returns the mean of the numeric votes cast by non-observers,
// rounded to one decimal place, or 0 when there are none.
func Average(participants []Participant) float64 {
	sum, count := 0, 0
	for _, p := range participants {
		if p.IsObserver || !p.Vote.Numeric() {
			continue
		}
		sum += p.Vote.Points
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(count)*10) / 10
}
