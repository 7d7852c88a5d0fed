// Package cli provides the interactive docsync command-line client.
//
// It wires configuration, the local store, the sync engine and an
// interactive REPL. Documents are always edited locally; while a session is
// active the engine pushes every change and merges remote ones.
//
// Key features:
//   - Register / Login / Logout / Status
//   - New / Edit / List / Show / Delete / Open / Current
//   - Categories (add, rename, delete with a migration policy)
//   - Sync on demand and recovery of orphaned or colliding documents
//   - Share links, Markdown export and import
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
