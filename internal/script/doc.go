// Package script resolves and compiles user-submitted scripts.
//
// A script is either inline source text or an http(s) URL reference to
// remote source. Module syntax (import/export) is lowered to CommonJS with
// esbuild so the goja engine can evaluate it; the compiled program is a
// wrapper function taking (module, exports, require), which keeps each
// invocation's bindings out of the VM's global scope.
package script
