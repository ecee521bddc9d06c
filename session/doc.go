// Package session tracks the absolute expiry and idle timeout of an
// authenticated session and fires a single expiry transition per session.
package session
