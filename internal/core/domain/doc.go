// Package domain holds the core business types for the sermon sync
// engine: the Sermon aggregate and its children, the durable summary
// retry job, connectivity classification, sync preferences, and the
// error taxonomy shared across services and adapters.
//
// This package has no dependencies outside the standard library and is
// imported by every other internal package.
package domain
