// Package server provides the HTTP server for the wiki reference server.
//
// the server is configured through environment variables
// (see internal/config/config.go for details)
//
// The package includes
//   - the router and middleware stack
//   - database start-up: migrations and, for test runs, seeding the test fixture (SEED_TEST_DATA)
//
// handlers are in internal/server/handlers, middleware is in internal/server/middleware
package server
