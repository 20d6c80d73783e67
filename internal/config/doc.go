// Package config loads and validates the TOML configuration for the
// proctoring daemon and CLI. Loading resolves the config path, decodes
// over built-in defaults, expands filesystem paths, and validates
// thresholds before anything else starts.
package config
