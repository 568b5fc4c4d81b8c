// Package cli provides the interactive storyqueue client.
//
// It wires configuration, the local draft store, the story API client and an
// interactive REPL that keeps working offline. Stories posted while offline
// are queued as drafts and replayed by the sync engine as soon as the
// connectivity monitor sees the API again.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command set.
package cli
