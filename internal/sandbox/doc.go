/*
Package sandbox defines the execution model and the orchestrator for running
untrusted functions under a deadline.

# Overview

A Request names a script, a function to invoke and a payload. The Engine
picks a runner for the requested isolation mode, races the sandbox handle
against a deadline timer, and maps whatever comes back into an Outcome:
either a normalized result with captured logs, or a tagged Error
(TIMEOUT, RUNTIME_ERROR, MEMORY_ERROR, PROCESS_ERROR, UNKNOWN).

# Isolation modes

  - process: each request runs in a freshly spawned, memory-capped worker
    process (strongest isolation)
  - none: the request runs in an in-process goja isolate, usually drawn
    from a warm pool (faster, weaker isolation)

# Lifecycle guarantees

Exactly one branch resolves each request. The deadline timer is always
stopped, and the handle is always killed or released on every exit path:
recycled into its pool only after a clean success, destroyed after any
error, kill or timeout.
*/
package sandbox
