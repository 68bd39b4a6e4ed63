// Package database provides the SQLite connection used by the action history.
//
// The database is optional: the device registry itself is never persisted,
// only the record of what users did (links, reboots, hidden widgets) and
// which nodes were evicted.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive. Each version ships an .up.sql and a .down.sql
// file; the migrations package embeds them and registers them here.
package database
