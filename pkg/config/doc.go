// Package config provides per-concern configuration structs for the
// device-trust service.
//
// Each struct ships with a DefaultXxxConfig() constructor and an optional
// NewXxxConfigFromEnv() loader using standard environment variable names.
// Services never read the environment themselves; wiring code in cmd/
// loads config once and passes the structs down.
package config
