// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters): the sync orchestrator, the
// summary retry queue, the background execution manager, and the
// settings service.
package services
