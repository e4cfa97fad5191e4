// Package preflight checks that docchat can run before a chat starts.
//
// The package validates:
//   - Configuration validity
//   - Search backend reachability
//   - Write permissions in the log directory
//   - Terminal support for the full-screen chat
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
