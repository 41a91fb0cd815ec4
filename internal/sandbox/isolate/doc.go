/*
Package isolate executes user functions in in-process goja contexts.

# Overview

Each Runtime wraps one goja VM with a console bridge and an interrupt-driven
kill switch. Runtimes are expensive to warm up, so the Runner leases them
from a Pool: idle entries are reused, entries are created lazily up to a
fixed capacity, and a saturated pool hands out temporary contexts that are
discarded after a single use.

# Reuse rules

A context only returns to the pool after a clean success below its recycle
threshold. Anything that threw, was interrupted, or crossed the threshold is
destroyed; its globals, timers and console state cannot be trusted by the
next request.
*/
package isolate
