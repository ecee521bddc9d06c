// Package httpapi is the HTTP implementation of the engine's backend
// collaborators.
//
// [Client] speaks the backend's JSON protocol (POST /auth/login,
// /auth/refresh, /auth/logout and GET /tenants/{subdomain}) and maps
// every HTTP status onto the portalauth error taxonomy: 400 to
// validation, 401 to invalid credentials or an expired token depending
// on the operation, 423 to an account lockout carrying the server's
// retry window, and transport failures to network errors.
package httpapi
