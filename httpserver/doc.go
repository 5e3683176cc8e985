// Package httpserver provides the HTTP request gateway.
//
// The httpserver package exposes the execution engine over a minimal HTTP
// surface: GET /health advertises the supported languages and POST /run
// executes one snippet per request. The gateway owns request validation
// (language whitelist, body size cap, JSON parsing) and response
// serialization; it holds no execution state of its own.
package httpserver
