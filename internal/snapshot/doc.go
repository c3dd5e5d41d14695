// Package snapshot writes ledger snapshots to files, SQLite databases and
// Redis. Every writer replaces the previous content of its target as a whole:
// file and database targets are built next to the destination and renamed
// over it, so a failed write leaves the old content in place.
package snapshot
