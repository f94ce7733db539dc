// Package harness runs the wiki server for integration tests.
//
// A Harness brings the server up in one of three ways:
//   - process: the server binary is started as a child process (Supervisor)
//   - inprocess: the server runs in a goroutine of the test binary (StartInProcess)
//   - external: an already running server given by TEST_SERVER_URL
//
// Setup then waits for the liveness endpoint (Prober), wipes the database and seeds the
// fixture (Resetter) and hands out clients. Authenticated clients get their token from a
// CredentialBootstrap, which logs in (or registers) once per identity and caches the token
// for the rest of the run.
//
// Typical use from a test package:
//
//	func TestMain(m *testing.M) {
//		cfg, err := config.NewHarnessConfig()
//		...
//		h, err := harness.New(cfg, logger)
//		...
//		anon, clientFor, err := h.Setup(ctx)
//		...
//		code := m.Run()
//		h.Teardown(ctx)
//		os.Exit(code)
//	}
package harness
