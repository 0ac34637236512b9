// Package config loads and validates the server configuration from a YAML
// file, filling in defaults for anything the file leaves out.
package config
