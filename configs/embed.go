// Package configs provides the embedded configuration template for docchat.
//
// The template is embedded at build time so `docchat config init` works for
// source builds and binary releases alike.
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults (internal/config NewConfig())
//  2. User config (~/.config/docchat/config.yaml)
//  3. Project config (.docchat.yaml)
//  4. Environment variables (DOCCHAT_*)
//  5. Command line flags
package configs

import _ "embed"

// UserConfigTemplate is written by `docchat config init` to
// ~/.config/docchat/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
