// internal/engine/keyboard.go
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
)

// Keyboard replaces an element's content through the same event sequence a
// user's edit produces, so editors that only listen to input events notice.
type Keyboard struct {
	timing Timing
	jitter Jitter
	sleep  Sleeper
	logger *zap.Logger
}

// NewKeyboard creates a Keyboard. Nil jitter and sleeper select NoJitter and
// a context-aware timer sleep.
func NewKeyboard(timing Timing, jitter Jitter, sleep Sleeper, logger *zap.Logger) *Keyboard {
	if jitter == nil {
		jitter = NoJitter{}
	}
	if sleep == nil {
		sleep = sleepContext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keyboard{timing: timing, jitter: jitter, sleep: sleep, logger: logger.Named("keyboard")}
}

// SimulateTyping focuses target, clears it and inserts text, one rune at a
// time when charByChar is set or in a single insertion otherwise.
func (k *Keyboard) SimulateTyping(ctx context.Context, target dom.Element, text string, charByChar bool) error {
	if err := target.Focus(ctx); err != nil {
		return fmt.Errorf("failed to focus typing target: %w", err)
	}
	if err := k.sleep(ctx, k.timing.Focus); err != nil {
		return err
	}

	info, err := target.Describe(ctx)
	if err != nil {
		return fmt.Errorf("failed to describe typing target: %w", err)
	}
	if err := k.selectAll(ctx, target, info); err != nil {
		return err
	}
	if err := k.sleep(ctx, k.timing.Select); err != nil {
		return err
	}

	if _, err := target.ExecCommand(ctx, "delete", ""); err != nil {
		return fmt.Errorf("failed to clear typing target: %w", err)
	}
	if err := k.sleep(ctx, k.timing.Delete); err != nil {
		return err
	}

	if charByChar {
		return k.typeRunes(ctx, target, text)
	}
	return k.insertBulk(ctx, target, info, text)
}

func (k *Keyboard) selectAll(ctx context.Context, target dom.Element, info dom.Info) error {
	var err error
	switch {
	case info.IsTextControl:
		err = target.SelectText(ctx)
	case info.HasChildren:
		err = target.SelectContents(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to select existing content: %w", err)
	}
	return nil
}

func (k *Keyboard) typeRunes(ctx context.Context, target dom.Element, text string) error {
	for _, r := range text {
		ch := string(r)
		notCanceled, err := target.DispatchInput(ctx, dom.InputEvent{
			Type:       "beforeinput",
			InputType:  "insertText",
			Data:       ch,
			Cancelable: true,
		})
		if err != nil {
			return fmt.Errorf("failed to dispatch beforeinput: %w", err)
		}
		if notCanceled {
			applied, err := target.ExecCommand(ctx, "insertText", ch)
			if err != nil {
				return fmt.Errorf("failed to insert text: %w", err)
			}
			if !applied {
				if _, err := target.DispatchInput(ctx, dom.InputEvent{Type: "input", InputType: "insertText", Data: ch}); err != nil {
					return fmt.Errorf("failed to dispatch input: %w", err)
				}
			}
		}
		if err := k.sleep(ctx, k.jitter.Next()); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) insertBulk(ctx context.Context, target dom.Element, info dom.Info, text string) error {
	// The result is ignored: the text is inserted even if a listener cancels.
	if _, err := target.DispatchInput(ctx, dom.InputEvent{
		Type:       "beforeinput",
		InputType:  "insertText",
		Data:       text,
		Cancelable: true,
	}); err != nil {
		return fmt.Errorf("failed to dispatch beforeinput: %w", err)
	}

	applied, err := target.ExecCommand(ctx, "insertText", text)
	if err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	if applied {
		return nil
	}

	k.logger.Debug("insertText not applied, assigning content directly", zap.String("tag", info.Tag))
	if info.IsTextControl {
		if err := target.SetValue(ctx, text); err != nil {
			return fmt.Errorf("failed to assign value: %w", err)
		}
		for _, ev := range []string{"input", "change"} {
			if err := target.DispatchEvent(ctx, ev); err != nil {
				return fmt.Errorf("failed to dispatch %s: %w", ev, err)
			}
		}
		return nil
	}
	if err := target.SetTextContent(ctx, text); err != nil {
		return fmt.Errorf("failed to assign text content: %w", err)
	}
	if _, err := target.DispatchInput(ctx, dom.InputEvent{Type: "input", InputType: "insertText", Data: text}); err != nil {
		return fmt.Errorf("failed to dispatch input: %w", err)
	}
	return nil
}
