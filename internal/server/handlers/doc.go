// Package handlers provides the HTTP handlers of the wiki reference server:
// the common infrastructure endpoints (root, health, readiness, version, docs)
// and the small slice of the wiki API the integration tests drive (auth, profile, repositories).
//
// Handlers are constructed with their dependencies and return http.HandlerFunc.
// API responses are written with the response package so they share the {code, data} envelope.
package handlers
