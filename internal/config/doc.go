// Package config defines configuration for the ismrget CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (ISMR_ prefix)
//   - YAML configuration file
//
// Sources layer in that order: flags override environment, environment
// overrides the file, the file overrides the defaults. Credentials are
// the exception; they come only from ISMR_EMAIL and ISMR_PASSWORD
// (typically via a .env file) and never from the YAML file, so a config
// checked into a station repo cannot leak them.
package config
