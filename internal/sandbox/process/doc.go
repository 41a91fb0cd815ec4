/*
Package process executes user functions in freshly spawned, memory-capped
worker processes.

The parent writes one JSON request document to the worker's stdin and closes
it, then buffers stdout and stderr until the process exits. The worker
answers with exactly one JSON document on stdout; everything else (non-zero
exits, the reserved out-of-memory exit code, unparsable output) is mapped to
a failure kind by the parent. Timeout kills are delivered as SIGKILL — user
code cannot block or ignore them, which is the point of this variant.
*/
package process
