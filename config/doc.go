// Package config provides configuration loading and validation for lockerd.
//
// The package handles YAML configuration files, environment variables, and
// CLI flags with automatic merging and validation using
// go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (LOCKERD_ prefix)
//  4. CLI flags
//
// # Environment Variables
//
// All config keys map to environment variables with the LOCKERD_ prefix and
// dots replaced by underscores, e.g. storage.access_key becomes
// LOCKERD_STORAGE_ACCESS_KEY.
package config
