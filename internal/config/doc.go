// Package config loads the Pulse service configuration.
//
// Values are resolved in order: built-in defaults, an optional YAML file,
// then environment variables. The merged result is validated before use.
// A Watcher reloads the file at runtime so settings such as the log level
// can change without a restart.
package config
