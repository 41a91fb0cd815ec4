package isolate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/my-piper/piper-deno/internal/normalize"
	"github.com/my-piper/piper-deno/internal/sandbox"
	"github.com/my-piper/piper-deno/internal/script"
)

// Runtime is one in-process isolated execution context.
type Runtime struct {
	vm      *goja.Runtime
	console *bridge
	loader  *script.Loader
	mu      sync.Mutex
}

// NewRuntime creates a sandboxed goja VM with a console bridge and neutered
// host globals.
func NewRuntime(loader *script.Loader) (*Runtime, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(1024)

	console := &bridge{}
	if err := console.install(vm); err != nil {
		return nil, err
	}

	// Timers would outlive the invocation; user code gets no-ops.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	if err := vm.Set("setTimeout", noop); err != nil {
		return nil, err
	}
	if err := vm.Set("setInterval", noop); err != nil {
		return nil, err
	}

	return &Runtime{
		vm:      vm,
		console: console,
		loader:  loader,
	}, nil
}

// Invoke loads the script, resolves the exported function by name and calls
// it with the payload. Console output is captured for the duration of the
// call; the sink is restored on every exit path. The returned report carries
// a result already passed through the normalizer.
func (r *Runtime) Invoke(ctx context.Context, scriptText, fn string, payload map[string]any) *sandbox.Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := NewRecorder()
	r.console.attach(rec)
	defer r.console.detach()

	mod, err := r.loader.Compile(ctx, scriptText)
	if err != nil {
		return &sandbox.Report{Err: &sandbox.Error{
			Kind:    sandbox.KindRuntime,
			Message: err.Error(),
			Logs:    rec.Entries(),
		}}
	}

	return r.call(mod, fn, payload, rec)
}

func (r *Runtime) call(mod *script.Module, fn string, payload map[string]any, rec *Recorder) *sandbox.Report {
	defer r.vm.ClearInterrupt()

	wrapperVal, err := r.vm.RunProgram(mod.Program)
	if err != nil {
		return r.errReport(err, rec)
	}
	wrapper, ok := goja.AssertFunction(wrapperVal)
	if !ok {
		return &sandbox.Report{Err: &sandbox.Error{
			Kind:    sandbox.KindRuntime,
			Message: "script did not evaluate to a module",
			Logs:    rec.Entries(),
		}}
	}

	moduleObj := r.vm.NewObject()
	exportsObj := r.vm.NewObject()
	if err := moduleObj.Set("exports", exportsObj); err != nil {
		return r.errReport(err, rec)
	}
	require := func(call goja.FunctionCall) goja.Value {
		panic(r.vm.NewTypeError("require is not available in the sandbox"))
	}

	if _, err := wrapper(goja.Undefined(), moduleObj, exportsObj, r.vm.ToValue(require)); err != nil {
		return r.errReport(err, rec)
	}

	target := lookupExport(moduleObj, fn)
	callable, ok := goja.AssertFunction(target)
	if !ok {
		return &sandbox.Report{Err: &sandbox.Error{
			Kind:    sandbox.KindRuntime,
			Message: fmt.Sprintf("Code must export function %s", fn),
			Code:    sandbox.CodeMissingExport,
			Logs:    rec.Entries(),
		}}
	}

	res, err := callable(goja.Undefined(), r.vm.ToValue(payload))
	if err != nil {
		return r.errReport(err, rec)
	}

	value, serr := r.settle(res)
	if serr != nil {
		serr.Logs = rec.Entries()
		return &sandbox.Report{Err: serr}
	}

	return &sandbox.Report{
		Result: normalize.Value(exportValue(value)),
		Logs:   rec.Entries(),
	}
}

// lookupExport resolves the named export off module.exports, which covers
// both reassigned module.exports and properties set on the exports object.
func lookupExport(moduleObj *goja.Object, fn string) goja.Value {
	exported := moduleObj.Get("exports")
	if exported == nil {
		return nil
	}
	obj, ok := exported.(*goja.Object)
	if !ok {
		return nil
	}
	return obj.Get(fn)
}

// settle unwraps a promise result. Rejections become runtime errors; a
// promise still pending after the call returns can never settle here, since
// the sandbox has no live timers or I/O to wake it.
func (r *Runtime) settle(v goja.Value) (goja.Value, *sandbox.Error) {
	if v == nil {
		return v, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		reason := p.Result()
		serr := &sandbox.Error{Kind: sandbox.KindRuntime, Message: "Promise rejected"}
		if reason != nil {
			serr.Message = reason.String()
			if obj, ok := reason.(*goja.Object); ok {
				serr.Stack = stringProp(obj, "stack")
				serr.Code = stringProp(obj, "code")
			}
		}
		return nil, serr
	default:
		return nil, &sandbox.Error{
			Kind:    sandbox.KindRuntime,
			Message: "Function returned a promise that never settled",
		}
	}
}

// errReport converts a goja error into a runtime-error report with message,
// stack and optional structured code.
func (r *Runtime) errReport(err error, rec *Recorder) *sandbox.Report {
	serr := &sandbox.Error{
		Kind:    sandbox.KindRuntime,
		Message: err.Error(),
		Logs:    rec.Entries(),
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		serr.Message = "Execution interrupted"
		return &sandbox.Report{Err: serr}
	}

	var exc *goja.Exception
	if errors.As(err, &exc) {
		serr.Stack = exc.String()
		if obj, ok := exc.Value().(*goja.Object); ok {
			name := stringProp(obj, "name")
			msg := stringProp(obj, "message")
			if msg != "" {
				if name != "" {
					serr.Message = name + ": " + msg
				} else {
					serr.Message = msg
				}
			}
			if stack := stringProp(obj, "stack"); stack != "" {
				serr.Stack = stack
			}
			serr.Code = stringProp(obj, "code")
		}
	}
	return &sandbox.Report{Err: serr}
}

func stringProp(obj *goja.Object, key string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// exportValue converts a goja value into plain Go values the normalizer
// understands. Typed arrays export as byte/number slices, ArrayBuffers as
// their backing bytes.
func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	exported := v.Export()
	if buf, ok := exported.(goja.ArrayBuffer); ok {
		return buf.Bytes()
	}
	return exported
}

// Interrupt forcibly stops any running script. A runtime that has been
// interrupted must be destroyed, not reused.
func (r *Runtime) Interrupt(reason string) {
	r.vm.Interrupt(reason)
}

// Close retires the runtime. It must not block: a close can race an
// interrupted invocation that is still unwinding, so the VM itself is left
// to the garbage collector once the last invocation returns.
func (r *Runtime) Close() {
	r.console.detach()
}
