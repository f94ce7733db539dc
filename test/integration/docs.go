// Package integration contains end-to-end tests for the wiki server.
//
// TestMain sets up one harness for the package: it starts the server (in-process by default),
// seeds the fixture into an isolated database and tears everything down after the tests.
// The harness is configured with the HARNESS_* environment variables (see internal/config/harness.go):
//
//	go test -tags=integration ./test/integration
//	HARNESS_MODE=process go test -tags=integration ./test/integration
//	TEST_SERVER_URL=http://127.0.0.1:8080 go test -tags=integration ./test/integration
//
// In process mode the server binary is built from ./cmd/wiki-server unless HARNESS_SERVER_BINARY is set.
// Server logs are not included in the test output, you can enable them with ENABLE_SERVER_LOGS=true.
package integration
