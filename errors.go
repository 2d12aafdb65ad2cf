package sessionkit

import "errors"

var (
	// ErrAuthenticationFailed is returned by [AuthAPI] implementations when
	// the server rejects the presented credential (bad password, dead
	// refresh token).
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInsufficientPrivileges is returned when valid credentials lack the
	// privilege an operation requires.
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
	// ErrNetworkUnavailable is returned for transport failures and 5xx
	// responses: the client could not find out whether it was right.
	ErrNetworkUnavailable = errors.New("authentication backend unreachable")
	// ErrSchemaUnknown is returned when a response body matches none of the
	// known schemas. It is never swallowed into a zero-value session.
	ErrSchemaUnknown = errors.New("response matched no known schema")
	// ErrRefreshRejected is returned by [Manager.RefreshAccessToken] after a
	// dead refresh token forced the session to be torn down.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNotAuthenticated is returned when an operation needs a session and
	// none is present.
	ErrNotAuthenticated = errors.New("no active session")
	// ErrBuilderUsed is returned when a [Builder] is built twice.
	ErrBuilderUsed = errors.New("builder already used")
)
