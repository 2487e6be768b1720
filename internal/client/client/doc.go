// Package client contains the client-side building blocks for librarykeeper.
//
// # Overview
//
// The package provides:
//  1. The API contract (see the Client interface) and its HTTP
//     implementation, APIClient.
//  2. Transparent token refresh. When an authenticated call is rejected
//     with 401, the call goes through a refresh coordinator that lets
//     exactly one POST /auth/refresh run for a given stale access token;
//     every other caller waits for it and reuses the rotated pair. The
//     original call is then retried once.
//  3. Local persistence (InitDatabase, RunMigrations, SQLiteTokenStore)
//     that keeps the session in an SQLite file between runs.
//
// # Error Handling
//
// Server failures are returned as *APIError, which matches ErrUnauthorized,
// ErrConflict, ErrValidation, ErrRateLimited or ErrUnavailable under
// errors.Is. A refresh that fails clears the stored session and returns
// ErrSessionExpired.
package client
