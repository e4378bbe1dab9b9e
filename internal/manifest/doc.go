// Package manifest loads packages.yaml, the list of packages published as
// release assets and the command that builds each one. Files are checked
// against an embedded JSON Schema before they are decoded.
package manifest
