// Package file provides file-based configuration for the observatory.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - Config: TOML-based deployment configuration
//   - CredentialsFile: TOML-based credential pool source with hot-reload
package file
