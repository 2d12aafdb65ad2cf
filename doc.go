// Package sessionkit provides client-side session management for applications
// that authenticate against a token-issuing HTTP API: JWT access tokens with
// client-side expiry tracking, an opaque refresh token, coalesced refresh, and
// pluggable persistent session storage.
//
// The package is designed for concurrent client workloads: Manager methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Manager], [Builder], [Config],
// and value types (LoginResult, UserRecord, MetricsSnapshot, etc.). Token
// decoding, session persistence, and the HTTP client live in the token, store,
// and api sub-packages.
//
// # What this package must NOT do
//
//   - Verify token signatures. The access token is an opaque credential issued
//     by the server; the client only reads its expiry claim.
//   - Retry failed operations on its own. Every network call is a single
//     attempt; retry policy belongs to the caller.
//   - Import the api sub-package (api implements the [AuthAPI] contract and
//     imports sessionkit, never the reverse).
//
// # Refresh contract
//
// RefreshAccessToken is the coordination hot path. While one refresh is in
// flight every concurrent caller joins the pending operation and observes its
// result; exactly one request reaches the refresh endpoint per in-flight
// window. A rejected refresh token tears the whole session down; a transport
// failure leaves the session untouched for a later attempt.
package sessionkit
