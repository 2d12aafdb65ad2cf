// Package token reads claims out of JWT access tokens without verifying
// signatures, which is all a client can and should do: expiry detection is
// computed locally from the exp claim, never by probing the server.
//
// Decode failures degrade instead of propagating — a malformed token simply
// counts as already expired.
package token
