// Package lockout tracks consecutive failed login attempts on the client
// and computes an exponentially growing, capped lockout window. While the
// window is open the engine rejects attempts before any network call is
// made.
package lockout
