// Package api is the HTTP implementation of the sessionkit [sessionkit.AuthAPI]
// contract: login, refresh, and profile calls against the portal backend.
//
// # Schema tolerance
//
// The backend has shipped both snake_case and camelCase response bodies, some
// wrapped in a {success, data} envelope and some bare. Responses are parsed by
// trying each known schema in a fixed order; when none matches the call fails
// loudly with [sessionkit.ErrSchemaUnknown] instead of silently degrading to a
// zero-value session.
//
// # Failure classification
//
// Every error returned wraps one of the sessionkit sentinels: credential
// rejections wrap ErrAuthenticationFailed, privilege rejections wrap
// ErrInsufficientPrivileges, and transport faults or 5xx responses wrap
// ErrNetworkUnavailable so the Manager can tell "you are wrong" from "we
// couldn't find out".
package api
