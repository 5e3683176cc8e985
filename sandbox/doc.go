// Package sandbox provides the code execution engine.
//
// The sandbox package runs untrusted, user-submitted snippets in a
// disposable subprocess. Each invocation stages a private workspace
// (script plus output directory), launches the interpreter as the leader
// of a new process group with a scrubbed allow-list environment, enforces
// a wall-clock timeout by force-killing the whole group, collects files
// written to the output directory as size-capped base64 blobs, and tears
// the workspace down regardless of outcome.
//
// The engine does not attempt kernel-level sandboxing; it expects the host
// (typically an outer container) to constrain the subprocess's privileges.
//
// Usage:
//
//	engine := sandbox.NewEngine(logger, cfg)
//	result, err := engine.Execute(ctx, sandbox.ExecuteRequest{
//	    Language:   "python",
//	    Code:       "print('Hello, World!')",
//	    TimeoutSec: 10,
//	})
package sandbox
