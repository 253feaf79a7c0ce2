// Package cmd implements the command-line interface of fieldlog. It provides
// a hierarchical command structure for recording observations and browsing
// the species catalog.
//
// The package is organized into several subpackages:
//
//   - obs: Commands for the observation log (add, list, delete, stats, clear)
//   - species: Commands for the species catalog (list, show)
//   - db: Commands for the storage medium (info, unlock)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See fieldlog -help for a list of all commands.
package cmd
