// Package numbers holds the membership set of raffle numbers.
//
// Set is the plain deduplicated collection. Store wraps a Set with a
// Persister and writes the full membership after every mutation, before the
// mutator returns. ParseBulk and ParseSingle turn user text into integers,
// EncodeExport and DecodeImport handle the JSON artifact.
package numbers
