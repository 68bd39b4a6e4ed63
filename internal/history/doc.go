// Package history records user actions and evictions in SQLite.
//
// It is an audit trail only. The device registry is rebuilt from discovery
// on every start and is never read back from here.
package history
