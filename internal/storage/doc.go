// Package storage persists per-tenant watch configuration and the runtime
// fields that must survive restarts (last check, last seen live, announced
// flag, last message reference) in a single sqlite file.
package storage
