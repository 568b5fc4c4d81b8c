// Package config loads runtime configuration for the storyqueue client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file given with --config (JSON or YAML).
//  3. .env in the working directory and STORYQUEUE_* environment variables.
//  4. Command-line flags (see RegisterFlags), when explicitly set.
//
// Example YAML:
//
//	api_url: https://story-api.example.com/v1
//	worker_url: http://127.0.0.1:8080
//	db_path: ~/.storyqueue/drafts.db
//	online_check_interval: 3s
package config
