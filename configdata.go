// Package stib provides embedded assets for the STiB daemon.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The daemon writes these bytes to the data directory on
// first run so the user has an annotated file to edit.
package stib

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, generated by
// cmd/genconfig and embedded at build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
