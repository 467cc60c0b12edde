// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombineContext(t *testing.T) {
	type tabKey struct{}

	t.Run("values come from the tab context", func(t *testing.T) {
		tab := context.WithValue(context.Background(), tabKey{}, "target-1")
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		assert.Equal(t, "target-1", combined.Value(tabKey{}))
		assert.NoError(t, combined.Err())
	})

	t.Run("closing the tab cancels the call", func(t *testing.T) {
		tab, closeTab := context.WithCancel(context.Background())
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		closeTab()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("the caller's deadline cancels the call", func(t *testing.T) {
		op, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()
		combined, cancel := CombineContext(context.Background(), op)
		defer cancel()

		assert.Eventually(t, func() bool { return combined.Err() != nil },
			time.Second, 5*time.Millisecond)
		// The link is a cancel, so the caller's deadline shows up as Canceled.
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("the tab's deadline is inherited", func(t *testing.T) {
		deadline := time.Now().Add(time.Hour)
		tab, closeTab := context.WithDeadline(context.Background(), deadline)
		defer closeTab()
		combined, cancel := CombineContext(tab, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		assert.True(t, ok)
		assert.True(t, got.Equal(deadline))
	})

	t.Run("explicit cancel", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}
