// Package config resolves the settings of a publishing run from flags, the
// environment (including the GitHub Actions variables) and the user config
// file at ~/.msys2pkg/config.yaml, and snapshots them into an immutable
// Config. It also builds the zap logger used by every command.
package config
