// Package cli defines the Cobra command tree for the msys2pkg CLI. Each file
// in this package registers one top-level command (publish, status, notes,
// and so on) with the root command. Commands resolve configuration, build
// the transport, and delegate to the internal packages; they only handle
// flags, output formatting, and exit status.
package cli
