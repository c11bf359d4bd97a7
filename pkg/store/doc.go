// Package store provides Persistence implementations for renderer assets.
//
// MemoryStore keeps children in memory and is meant for tests and examples.
// FileStore persists each asset as a YAML document on disk. Both assign
// stable identifiers with ChildID, so storing the same child again (as an
// undo does) yields the identifier it had before.
package store
