package presets

import (
	"math"
	"sort"
)

// Analysis summarizes a weight set.
type Analysis struct {
	Total int     `json:"total"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Mean  float64 `json:"mean"`

	// BalanceScore is 1 minus the Gini coefficient of the weights:
	// 1.0 means perfectly even, values near 0 mean one key dominates.
	BalanceScore float64 `json:"balance_score"`
}

// Normalize scales a weight set so its total equals targetTotal while
// preserving the ratios as closely as integer weights allow. Rounding
// remainders go to the largest fractional shares first, so the result
// always sums exactly to targetTotal. An all-zero or empty input is
// returned unchanged.
func Normalize(weights map[string]int, targetTotal int) map[string]int {
	out := make(map[string]int, len(weights))
	var total int
	for id, w := range weights {
		out[id] = w
		total += w
	}
	if total == 0 || targetTotal <= 0 || total == targetTotal {
		return out
	}

	type share struct {
		id   string
		frac float64
	}
	shares := make([]share, 0, len(weights))
	assigned := 0
	for id, w := range weights {
		exact := float64(w) * float64(targetTotal) / float64(total)
		floor := int(math.Floor(exact))
		out[id] = floor
		assigned += floor
		shares = append(shares, share{id: id, frac: exact - float64(floor)})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].frac != shares[j].frac {
			return shares[i].frac > shares[j].frac
		}
		return shares[i].id < shares[j].id
	})
	for i := 0; i < targetTotal-assigned; i++ {
		out[shares[i%len(shares)].id]++
	}
	return out
}

// DistributeEvenly splits a total across the given keys as evenly as
// integer weights allow. The remainder goes to the lexicographically
// first keys so the result is deterministic.
func DistributeEvenly(keyIDs []string, total int) map[string]int {
	out := make(map[string]int, len(keyIDs))
	if len(keyIDs) == 0 || total <= 0 {
		return out
	}

	sorted := append([]string(nil), keyIDs...)
	sort.Strings(sorted)

	base := total / len(sorted)
	remainder := total % len(sorted)
	for i, id := range sorted {
		out[id] = base
		if i < remainder {
			out[id]++
		}
	}
	return out
}

// Analyze computes summary statistics for a weight set. A nil or empty
// set yields a zero Analysis.
func Analyze(weights map[string]int) Analysis {
	if len(weights) == 0 {
		return Analysis{}
	}

	values := make([]int, 0, len(weights))
	var a Analysis
	a.Min = math.MaxInt
	for _, w := range weights {
		values = append(values, w)
		a.Total += w
		if w < a.Min {
			a.Min = w
		}
		if w > a.Max {
			a.Max = w
		}
	}
	n := len(values)
	a.Mean = float64(a.Total) / float64(n)

	if a.Total == 0 {
		a.BalanceScore = 1.0
		return a
	}

	var diffSum float64
	for _, x := range values {
		for _, y := range values {
			diffSum += math.Abs(float64(x - y))
		}
	}
	gini := diffSum / (2 * float64(n*n) * a.Mean)
	a.BalanceScore = 1.0 - gini
	return a
}
