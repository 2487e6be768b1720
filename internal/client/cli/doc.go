// Package cli provides the interactive librarykeeper command-line client.
//
// It wires configuration, the local session store, the API client and an
// interactive REPL. A session saved by a previous run is resumed on start,
// and a background watcher keeps the prompt's online/offline marker
// current.
//
// Commands:
//   - register, login, logout
//   - whoami: fetch the profile, refreshing the access token when needed
//   - status: check that the server is reachable
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
