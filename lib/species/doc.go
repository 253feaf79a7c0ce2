// Package species provides the read-only catalog of fish and bird species.
//
// The default catalog is a YAML document embedded into the binary, other
// catalogs can be loaded with LoadFile. Loading rejects empty or duplicate ids
// as well as unknown types and categories. The observation store uses the
// catalog only to split statistics by type, it never checks species ids
// against it.
package species
