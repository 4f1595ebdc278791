// Package config holds the serving configuration and the process environment.
//
// Files:
//   - serving.go: ServingConfig and its defaults
//   - optional.go: OptionalInt flag value (unset vs. zero)
//   - usage.go: usage-stats level flag value
//   - flags.go: flag registration and environment/file overlay
//   - loader.go: config file loading by extension
//   - environment.go: hub environment (tokens, cache, offline mode) and dotenv loading
package config
