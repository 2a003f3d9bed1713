// Package client contains the client-side building blocks that talk to the
// choir registry backend.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see the Client interface): Do, Login, Ping, Close.
//  2. A concrete HTTP implementation (see HTTPClient) that resolves paths
//     against a base URL, injects the bearer access token from a TokenStore,
//     and applies the global 401 policy: the stored token is purged and the
//     unauthorized hook fires. Nothing else (in particular no queued offline
//     work) is cancelled by that policy.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Transport failures wrap ErrUnavailable. Any status >= 400 is a *StatusError
// exposing StatusCode(); it unwraps to ErrUnauthorized for 401 and to
// ErrUnavailable when the edge proxy synthesized the response because it was
// offline.
//
// See Also
//
//   - Interface:  Client
//   - HTTP impl:  HTTPClient
//   - DB helpers: InitDatabase, RunMigrations
//   - Errors:     ErrUnavailable, ErrUnauthorized, StatusError
package client
