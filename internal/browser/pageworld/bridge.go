// Package pageworld is the boundary to the page's own script context, where
// globals installed by the page (editor registries, module loaders) live.
// Calls across it are asynchronous and bounded by a timeout.
package pageworld

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single call when none is configured.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when the realm did not answer in time.
var ErrTimeout = errors.New("page world call timed out")

// Realm evaluates a function expression with one JSON-serializable argument
// in the page's privileged context and returns its JSON-encoded result.
type Realm interface {
	Call(ctx context.Context, fn string, args any) (json.RawMessage, error)
}

// ScriptError is an exception thrown by the script itself, as opposed to a
// failure to reach the realm.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("page script threw: %s", e.Message)
}

// Bridge wraps a Realm with a per-call timeout.
type Bridge struct {
	realm   Realm
	timeout time.Duration
	logger  *zap.Logger
}

// NewBridge creates a Bridge. A non-positive timeout selects DefaultTimeout.
func NewBridge(realm Realm, timeout time.Duration, logger *zap.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{realm: realm, timeout: timeout, logger: logger.Named("pageworld")}
}

type callResult struct {
	raw json.RawMessage
	err error
}

// Call runs fn(args) in the realm. It returns ErrTimeout if the realm does
// not answer within the bridge timeout, even when the realm ignores ctx.
func (b *Bridge) Call(ctx context.Context, fn string, args any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		raw, err := b.realm.Call(ctx, fn, args)
		done <- callResult{raw: raw, err: err}
	}()

	select {
	case res := <-done:
		return res.raw, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
		}
		return nil, ctx.Err()
	}
}

// CallBool runs fn and interprets its result strictly: anything but a JSON
// true is false.
func (b *Bridge) CallBool(ctx context.Context, fn string, args any) (bool, error) {
	raw, err := b.Call(ctx, fn, args)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := jsoniter.Unmarshal(raw, &ok); err != nil {
		b.logger.Debug("Page world returned a non-boolean result", zap.ByteString("result", raw))
		return false, nil
	}
	return ok, nil
}
