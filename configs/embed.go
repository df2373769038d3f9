// Package configs embeds the configuration template written by
// `nextor init`. Defaults live in internal/config; keep the two in sync.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .nextor.yaml by `nextor init`.
//
//go:embed nextor.example.yaml
var ProjectConfigTemplate string
