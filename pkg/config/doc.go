// Package config provides configuration loading, validation, and hot
// reload for the gem-proxy load balancing core.
//
// Configuration is read from a YAML file, filled in with defaults,
// optionally overridden by GEMPROXY_* environment variables, and then
// validated. Environment variables always take precedence over
// file-based configuration.
//
// # Basic Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Hot Reload
//
// The Watcher observes the configuration file and emits the re-parsed
// configuration on change, letting the balancer apply key weight edits
// without a restart:
//
//	watcher, err := config.NewWatcher("config.yaml", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go watcher.Watch(ctx, func(cfg *config.Config) error {
//	    return manager.ApplyConfig(ctx, cfg)
//	})
//	defer watcher.Stop()
package config
