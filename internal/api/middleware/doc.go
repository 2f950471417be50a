// Package middleware holds the gin middleware shared by the HTTP API:
// CORS and per-client or global rate limiting.
package middleware
