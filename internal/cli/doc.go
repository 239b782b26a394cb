// Package cli holds the process-level plumbing shared by the beacongrid
// binaries: the ExitError type that carries exit codes out of run functions,
// the common logging flags, and logger construction. It keeps the cmd/
// entrypoints thin and identical in shape.
package cli
