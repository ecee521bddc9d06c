// Package portalauth is the authentication and session-security engine
// for a multi-tenant school-management client. It owns the login
// lifecycle end to end: credential submission, progressive lockout,
// tenant identity checks, token storage, session expiry tracking, and
// permission evaluation.
//
// The package is designed for concurrent callers: Engine methods are
// safe from multiple goroutines after initialization through
// [Builder.Build]. Interleaved operations resolve deterministically; a
// logout always supersedes any login or refresh still in flight.
//
// # Architecture boundaries
//
// portalauth is the public surface. It exposes [Engine], [Builder],
// [Config], the error taxonomy, and value types (AuthState,
// MetricsSnapshot, etc.). Supporting concerns live in sub-packages:
// token decoding in token, credential persistence in credstore, lockout
// accounting in lockout, session timing in session, tenant resolution in
// tenant, permission sets in permission. Event dispatch and counters
// live under internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Verify token signatures. Tokens are decoded for their claims only;
//     signature trust belongs to the server that issued them.
//   - Open network connections itself. All backend traffic goes through
//     the [API] collaborator; the HTTP implementation lives in httpapi.
//   - Resurrect a session after logout, whatever responses are still in
//     flight.
package portalauth
