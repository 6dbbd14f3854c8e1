// Package presets stores named weight sets that operators can apply
// to the pool in one step.
//
// A WeightPreset is a reusable weight map ("all even", "canary 10%",
// "failover to region B") with bookkeeping metadata. The Store
// interface has an in-memory implementation for tests and ephemeral
// deployments and a SQLite implementation for persistence.
//
// The package also carries pure weight-math helpers: Normalize scales
// a weight set to a target total, DistributeEvenly splits a total
// across keys, and Analyze summarizes how balanced a set is.
//
// Applying a preset is the balancer manager's job so the change is
// audited as a batch; this package only stores and shapes weight sets.
package presets
