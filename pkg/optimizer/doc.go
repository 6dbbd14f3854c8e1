// Package optimizer derives weight recommendations from observed
// request outcomes.
//
// Callers feed it one sample per completed request (latency plus
// success or failure). The optimizer scores each key over a rolling
// window and proposes a weight set that shifts traffic toward keys
// with better success rates and lower latency, clamped to the
// configured bounds. Keys without enough samples keep their current
// weight rather than being rebalanced on noise.
//
// Recommendations are advisory. Applying them goes through the
// balancer manager so every applied change lands in the audit log as
// an intelligent adjustment.
package optimizer
