package config

import "context"

// ConfigLoader loads configuration from a backing source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configuration structs that can validate
// themselves after loading. Validation failures are fatal at startup.
type Validator interface {
	Validate() error
}
