// Package httputil provides HTTP handler utilities for the response
// envelope, error mapping, JSON decoding, and request parsing.
//
// Every API response uses the same envelope shape:
//
//	{"success": true, "count": 3, "data": [...]}
//	{"success": false, "message": "lead not found"}
//
// Handlers return domain errors from pkg/apperr; WriteAppError maps the
// error kind to an HTTP status and renders the failure envelope.
package httputil
