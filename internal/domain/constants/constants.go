// Package constants holds shared configuration values.
package constants

// Environments.
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Remote store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Change feed providers.
const (
	FeedProviderMemory = "memory"
	FeedProviderGoogle = "google"
)
