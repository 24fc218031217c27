// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the sync engine to function:
//
//   - SermonStore: Local aggregate persistence
//   - JobStore: Durable summary retry queue persistence
//   - RemoteBackend: Authenticated HTTP access to the cloud backend
//   - Summarizer: AI summary generation
//   - EntitlementChecker: Sync permission gate (auth/billing collaborator)
//   - NetworkMonitor: Connectivity path observation
//   - ConfigStore: Application configuration
//   - Clock: Time source and timer scheduling
//
// # Optional Interfaces
//
//   - Notifier: Summary-ready notifications. When nil, completion events
//     are simply not published.
//   - TaskStore: Background task state persistence for crash recovery.
//     When nil, the background manager keeps state in memory only.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
