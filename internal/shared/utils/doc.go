// Package utils holds input validation shared by the API and the host
// resolver.
package utils
