// Package keypool implements the upstream credential pool at the heart of
// the gem-proxy load balancer. It owns the single authoritative copy of
// every API key's configuration and runtime state, and schedules requests
// across keys using the smooth weighted round-robin algorithm.
//
// # Design
//
// The pool collapses key management and scheduling into one structure:
// each Key carries its configured weight, the effective weight the
// scheduler actually uses (degraded on failure, restored on success),
// and the smooth-WRR accumulator. There is no second copy of key state
// to keep in sync.
//
// All scheduling and mutation happens under one mutex, so the pool is a
// single linearizable unit: two concurrent callers can never observe the
// total-weight cache disagreeing with the member weights, and no two
// callers are ever handed the same selection slot.
//
// # Selection
//
// SelectNext implements smooth weighted round robin: every eligible key
// gains its effective weight, the key with the highest accumulator wins
// and pays back the total. Over a full cycle of T selections (T being
// the sum of effective weights) each key is chosen exactly its weight's
// worth of times, without bursts of the same high-weight key.
//
// # Health and rate limiting
//
// A key becomes ineligible when it has failed too many consecutive
// times, when health degradation has driven its effective weight to
// zero, or when it has exhausted its per-minute request budget. Usage
// windows reset after 60 seconds; deactivated keys are optimistically
// retried after a fixed cool-down.
package keypool
