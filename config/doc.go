// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Secrets (database DSN, NATS URL) are taken from the environment, with an
// optional .env file merged in first. Routing heuristics (transfer buffers,
// hub threshold) are exposed as tunables rather than constants.
package config
