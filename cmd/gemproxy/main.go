// Gem-proxy is a weighted load-balancing core for pools of upstream
// API keys.
//
// It schedules requests across keys with smooth weighted round robin,
// tracks per-key health and rate limits, and records every configured
// weight change in an append-only audit log with snapshots and
// rollback.
//
// Usage:
//
//	# Start the balancer with default configuration
//	gemproxy run
//
//	# Start with a custom configuration file
//	gemproxy run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	gemproxy validate --config config.yaml
//
//	# Query the audit log
//	gemproxy audit query --key key-1 --limit 20
//
//	# Export audit records
//	gemproxy audit export --format csv --output changes.csv
//
//	# Manage and apply weight presets
//	gemproxy presets list
//	gemproxy presets apply --name all-even --operator alice
//
// For complete documentation, see: https://github.com/MAQSOODAWANhaha/gem-proxy
package main

func main() {
	Execute()
}
