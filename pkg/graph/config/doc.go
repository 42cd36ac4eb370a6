/*
Package config provides type-safe configuration extraction from map[string]any.

Accessors never fail: a missing key or a value of the wrong type yields the
supplied default. Nested sections are reached with Sub or a dotted key
("checkpoint.ttl"). String values expand environment references, and numeric,
boolean and duration accessors parse strings after expansion, so a file can
say max_steps: ${MAX_STEPS}.

	cfg, err := config.FromFile("agent.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	cp := cfg.Sub("checkpoint")
	backend := cp.String("backend", "memory") // "redis"
	url := cp.String("url", "")               // "${REDIS_URL}" expanded
	ttl := cp.Duration("ttl", 0)              // "24h"

The checkpoint package consumes a section like the one above through
checkpoint.Open.

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
