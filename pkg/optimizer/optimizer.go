package optimizer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MAQSOODAWANhaha/gem-proxy/pkg/config"
)

// latencyBaseline is the latency at which the latency component of a
// key's score is exactly 0.5. Faster keys score higher, slower lower.
const latencyBaseline = 100 * time.Millisecond

// Score weighting between success rate and latency.
const (
	successRateFactor = 0.6
	latencyFactor     = 0.4
)

type sample struct {
	at      time.Time
	latency time.Duration
	success bool
}

// Optimizer accumulates per-key request samples over a rolling window
// and scores keys from them.
type Optimizer struct {
	config *config.OptimizerConfig
	logger *slog.Logger

	mu      sync.Mutex
	samples map[string][]sample
	now     func() time.Time
}

// New builds an Optimizer from cfg. Zero-valued bounds fall back to
// the configuration defaults.
func New(cfg *config.OptimizerConfig) *Optimizer {
	if cfg == nil {
		cfg = &config.OptimizerConfig{}
	}
	c := *cfg
	if c.MinWeight <= 0 {
		c.MinWeight = config.DefaultOptimizerMinWeight
	}
	if c.MaxWeight <= 0 {
		c.MaxWeight = config.DefaultOptimizerMaxWeight
	}
	if c.MinSamples <= 0 {
		c.MinSamples = config.DefaultOptimizerMinSamples
	}
	if c.SampleWindow <= 0 {
		c.SampleWindow = config.DefaultOptimizerSampleWindow
	}

	return &Optimizer{
		config:  &c,
		logger:  slog.Default().With("component", "optimizer"),
		samples: make(map[string][]sample),
		now:     time.Now,
	}
}

// RecordSample records one completed request for a key.
func (o *Optimizer) RecordSample(keyID string, latency time.Duration, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.samples[keyID] = append(o.samples[keyID], sample{
		at:      o.now(),
		latency: latency,
		success: success,
	})
	o.pruneLocked(keyID)
}

// SampleCount returns the number of in-window samples for a key.
func (o *Optimizer) SampleCount(keyID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pruneLocked(keyID)
	return len(o.samples[keyID])
}

// Score computes a key's quality in [0, 1] from its in-window samples.
// The second return is false when the key has fewer samples than the
// configured minimum, in which case the score is not meaningful.
func (o *Optimizer) Score(keyID string) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scoreLocked(keyID)
}

func (o *Optimizer) scoreLocked(keyID string) (float64, bool) {
	o.pruneLocked(keyID)
	samples := o.samples[keyID]
	if len(samples) < o.config.MinSamples {
		return 0, false
	}

	var successes int
	var totalLatency time.Duration
	for _, s := range samples {
		if s.success {
			successes++
		}
		totalLatency += s.latency
	}

	successRate := float64(successes) / float64(len(samples))
	avgLatency := totalLatency / time.Duration(len(samples))
	latencyScore := float64(latencyBaseline) / float64(latencyBaseline+avgLatency)

	return successRateFactor*successRate + latencyFactor*latencyScore, true
}

// Reset discards all accumulated samples.
func (o *Optimizer) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = make(map[string][]sample)
}

// pruneLocked drops samples older than the rolling window.
func (o *Optimizer) pruneLocked(keyID string) {
	samples := o.samples[keyID]
	if len(samples) == 0 {
		return
	}
	cutoff := o.now().Add(-o.config.SampleWindow)

	i := 0
	for i < len(samples) && !samples[i].at.After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	if i == len(samples) {
		delete(o.samples, keyID)
		return
	}
	o.samples[keyID] = samples[i:]
}
