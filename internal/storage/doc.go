// Package storage provides the key-value persistence layer behind the
// number set.
//
// Drivers:
//   - memory:   process-local map (tests, dry runs)
//   - file:     one JSON document per key, replaced atomically
//   - sqlite:   kv table in a SQLite database file
//   - redis:    plain GET/SET under a key prefix
//   - postgres: kv_records table managed through GORM
//
// Record binds a Store and a fixed key into a numbers.Persister.
package storage
