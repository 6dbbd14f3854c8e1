package optimizer

import (
	"context"
	"math"
	"sort"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/audit"
)

// Recommendation is one key's proposed weight with the evidence
// behind it.
type Recommendation struct {
	KeyID             string  `json:"key_id"`
	CurrentWeight     int     `json:"current_weight"`
	RecommendedWeight int     `json:"recommended_weight"`
	Score             float64 `json:"score"`
	SampleCount       int     `json:"sample_count"`
	Reason            string  `json:"reason"`
}

// WeightApplier applies a batch of weight changes. The balancer
// manager satisfies it.
type WeightApplier interface {
	BatchUpdateWeights(ctx context.Context, updates map[string]int, op audit.OperationType, source audit.ChangeSource, operator, reason string) ([]*audit.ChangeRecord, error)
}

// Recommendations proposes a weight per key in the given weight set.
// The total configured weight is preserved: each scored key gets a
// share proportional to its score, clamped to the configured bounds.
// Keys below the sample minimum keep their current weight and are
// excluded from the redistribution.
func (o *Optimizer) Recommendations(weights map[string]int) []Recommendation {
	o.mu.Lock()
	defer o.mu.Unlock()

	keyIDs := make([]string, 0, len(weights))
	for id := range weights {
		keyIDs = append(keyIDs, id)
	}
	sort.Strings(keyIDs)

	scores := make(map[string]float64, len(keyIDs))
	var scoredTotal float64
	var scoredWeight int
	for _, id := range keyIDs {
		score, ok := o.scoreLocked(id)
		if !ok {
			continue
		}
		scores[id] = score
		scoredTotal += score
		scoredWeight += weights[id]
	}

	recs := make([]Recommendation, 0, len(keyIDs))
	for _, id := range keyIDs {
		rec := Recommendation{
			KeyID:         id,
			CurrentWeight: weights[id],
			SampleCount:   len(o.samples[id]),
		}

		score, ok := scores[id]
		if !ok || scoredTotal == 0 {
			rec.RecommendedWeight = rec.CurrentWeight
			rec.Reason = "insufficient samples"
			recs = append(recs, rec)
			continue
		}

		rec.Score = score
		rec.RecommendedWeight = o.clamp(int(math.Round(float64(scoredWeight) * score / scoredTotal)))
		if rec.RecommendedWeight == rec.CurrentWeight {
			rec.Reason = "no change"
		} else {
			rec.Reason = "score-proportional share"
		}
		recs = append(recs, rec)
	}
	return recs
}

// Apply pushes the changed recommendations through the applier as one
// audited batch. It returns the applied weight set, which is empty
// when every recommendation matches the current weight.
func (o *Optimizer) Apply(ctx context.Context, applier WeightApplier, weights map[string]int, operator string) (map[string]int, error) {
	if !o.config.Enabled {
		return nil, nil
	}

	updates := make(map[string]int)
	for _, rec := range o.Recommendations(weights) {
		if rec.RecommendedWeight != rec.CurrentWeight {
			updates[rec.KeyID] = rec.RecommendedWeight
		}
	}
	if len(updates) == 0 {
		return nil, nil
	}

	_, err := applier.BatchUpdateWeights(ctx, updates, audit.OperationIntelligent, audit.SourceOptimizer, operator, "optimizer recommendation")
	if err != nil {
		return nil, err
	}
	o.logger.Info("applied optimizer recommendations", "keys", len(updates))
	return updates, nil
}

func (o *Optimizer) clamp(w int) int {
	if w < o.config.MinWeight {
		return o.config.MinWeight
	}
	if w > o.config.MaxWeight {
		return o.config.MaxWeight
	}
	return w
}
