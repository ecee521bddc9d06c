// Package credstore holds the access/refresh token pair for the active
// session. The memory backend models "remember me" declined (lost on
// restart); the file and redis backends are the durable per-origin
// stores that keep remembered sessions alive across restarts.
package credstore
