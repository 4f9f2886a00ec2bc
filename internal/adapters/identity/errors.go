// Package identity resolves viewer ids from tokens and proxies the
// university SSO login flow.
package identity

import "errors"

// Sentinel kinds for identity errors.
var (
	// ErrInvalidCredentials means the SSO rejected the username/password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUpstream means the SSO could not be reached or answered unexpectedly.
	ErrUpstream = errors.New("identity provider failure")
)
