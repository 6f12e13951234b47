// Package observability builds the process logger and the request logging
// middleware.
package observability
