// Package sqlite provides SQLite-backed implementations of the
// persistence ports: sermon aggregates with their children, the
// durable summary job queue, and background task state. A single
// database file holds all of it, created with WAL mode and migrated
// from embedded SQL files at open time.
package sqlite
