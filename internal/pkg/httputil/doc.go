// Package httputil holds the JSON envelope helpers shared by handlers and
// the single place where apperr kinds become HTTP status codes.
package httputil
