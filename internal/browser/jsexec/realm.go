// internal/browser/jsexec/realm.go
package jsexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/jsbind"
	"github.com/xkilldash9x/pagepilot/internal/browser/memdom"
	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
)

// Realm is a goja-backed pageworld.Realm over a memdom document. The page's
// globals persist between calls, so a page (or a test) can install editor
// registries with Eval before the engine calls into them.
type Realm struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	doc    *memdom.Document
	bridge *jsbind.Bridge
	logger *zap.Logger
}

// NewRealm creates a realm whose window and document reflect doc.
func NewRealm(doc *memdom.Document, logger *zap.Logger) *Realm {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("jsexec")
	vm := goja.New()
	return &Realm{
		vm:     vm,
		doc:    doc,
		bridge: jsbind.NewBridge(vm, log),
		logger: log,
	}
}

// Eval runs a script snippet in the page's global scope.
func (r *Realm) Eval(ctx context.Context, script string) error {
	_, err := r.run(ctx, func() (goja.Value, error) {
		return r.vm.RunString(script)
	})
	return err
}

// Call evaluates fn, which must be a function expression, and invokes it with
// args decoded as a plain JS value.
func (r *Realm) Call(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	argJSON, err := jsoniter.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page world arguments: %w", err)
	}
	return r.run(ctx, func() (goja.Value, error) {
		prog, err := goja.Compile("pageworld", "("+fn+")", false)
		if err != nil {
			return nil, err
		}
		fnVal, err := r.vm.RunProgram(prog)
		if err != nil {
			return nil, err
		}
		callable, ok := goja.AssertFunction(fnVal)
		if !ok {
			return nil, &pageworld.ScriptError{Message: "script did not evaluate to a function"}
		}
		arg, err := r.parseJSON(string(argJSON))
		if err != nil {
			return nil, err
		}
		return callable(goja.Undefined(), arg)
	})
}

// run executes body under the document lock with the bridge bound, and
// converts the result to JSON. ctx cancellation interrupts the VM.
func (r *Realm) run(ctx context.Context, body func() (goja.Value, error)) (json.RawMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.vm.ClearInterrupt()
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer stop()

	var (
		raw json.RawMessage
		err error
	)
	r.doc.Exclusive(func(t *memdom.Tree) {
		r.bridge.Bind(t)
		defer r.bridge.Unbind()

		var v goja.Value
		v, err = body()
		if err != nil {
			return
		}
		if p, ok := v.Export().(*goja.Promise); ok {
			switch p.State() {
			case goja.PromiseStateFulfilled:
				v = p.Result()
			case goja.PromiseStateRejected:
				err = &pageworld.ScriptError{Message: p.Result().String()}
				return
			default:
				err = &pageworld.ScriptError{Message: "promise did not settle"}
				return
			}
		}
		raw, err = r.stringify(v)
	})
	return raw, r.classify(ctx, err)
}

func (r *Realm) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("javascript execution interrupted: %w", ctx.Err())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &pageworld.ScriptError{Message: exception.Error()}
	}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		return &pageworld.ScriptError{Message: syntax.Error()}
	}
	return err
}

func (r *Realm) parseJSON(s string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse is not available")
	}
	return parse(goja.Undefined(), r.vm.ToValue(s))
}

// stringify mirrors a by-value return across a process boundary: values JSON
// cannot express come back as null.
func (r *Realm) stringify(v goja.Value) (json.RawMessage, error) {
	if v == nil || goja.IsUndefined(v) {
		return json.RawMessage("null"), nil
	}
	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return nil, errors.New("JSON.stringify is not available")
	}
	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(out) {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(out.String()), nil
}

var _ pageworld.Realm = (*Realm)(nil)
