package schemas_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

func intPtr(n int) *int { return &n }

func TestDecodeAction(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    string
		expected schemas.Action
	}{
		{"navigate", `{"type":"navigate","url":"https://example.com"}`, schemas.Navigate{URL: "https://example.com"}},
		{"click by selector", `{"type":"click","selector":"#go"}`, schemas.Click{Selector: "#go"}},
		{"click by text", `{"type":"click","text":"Sign in"}`, schemas.Click{Text: "Sign in"}},
		{"type with submit", `{"type":"type","selector":"#q","text":"golang","submit":true}`, schemas.Type{Selector: "#q", Text: "golang", Submit: true}},
		{"type empty text", `{"type":"type","selector":"#q"}`, schemas.Type{Selector: "#q"}},
		{"select", `{"type":"select","selector":"#plan","value":"pro"}`, schemas.Select{Selector: "#plan", Value: "pro"}},
		{"wait", `{"type":"wait","ms":250}`, schemas.Wait{Ms: 250}},
		{"scroll default amount", `{"type":"scroll","direction":"down"}`, schemas.Scroll{Direction: schemas.ScrollDown}},
		{"scroll with amount", `{"type":"scroll","direction":"up","amount":120}`, schemas.Scroll{Direction: schemas.ScrollUp, Amount: intPtr(120)}},
		{"extract keeps description", `{"type":"extract","selector":"h1","description":"page heading"}`, schemas.Extract{Selector: "h1", Description: "page heading"}},
		{"extract whole page", `{"type":"extract"}`, schemas.Extract{}},
		{"screenshot", `{"type":"screenshot"}`, schemas.Screenshot{}},
		{"unknown type", `{"type":"hover","selector":"#menu"}`, schemas.Unknown{Type: "hover"}},
		{"extra fields ignored", `{"type":"wait","ms":1,"reason":"settle"}`, schemas.Wait{Ms: 1}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			action, err := schemas.DecodeAction([]byte(tc.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, action); diff != "" {
				t.Errorf("unexpected action (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeAction_Invalid(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		input   string
		wantErr string
		typed   bool
	}{
		{"missing type", `{"selector":"#go"}`, "type is required", true},
		{"navigate without url", `{"type":"navigate"}`, "invalid navigate action: url is required", true},
		{"click without target", `{"type":"click"}`, "selector or text is required", true},
		{"type without selector", `{"type":"type","text":"x"}`, "invalid type action: selector is required", true},
		{"select without selector", `{"type":"select","value":"a"}`, "invalid select action: selector is required", true},
		{"negative wait", `{"type":"wait","ms":-5}`, "ms must not be negative", true},
		{"sideways scroll", `{"type":"scroll","direction":"left"}`, `direction must be "up" or "down"`, true},
		{"negative scroll", `{"type":"scroll","direction":"up","amount":-1}`, "amount must not be negative", true},
		{"not json", `click #go`, "failed to decode action", false},
		{"wrong field type", `{"type":"wait","ms":"soon"}`, "failed to decode wait action", false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := schemas.DecodeAction([]byte(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)

			var invalid *schemas.InvalidActionError
			assert.Equal(t, tc.typed, errors.As(err, &invalid))
		})
	}
}

func TestDecodeActions(t *testing.T) {
	t.Parallel()

	t.Run("array", func(t *testing.T) {
		actions, err := schemas.DecodeActions([]byte(`[{"type":"click","selector":"#a"},{"type":"wait","ms":10}]`))
		require.NoError(t, err)
		assert.Equal(t, []schemas.Action{schemas.Click{Selector: "#a"}, schemas.Wait{Ms: 10}}, actions)
	})

	t.Run("single object", func(t *testing.T) {
		actions, err := schemas.DecodeActions([]byte(`{"type":"screenshot"}`))
		require.NoError(t, err)
		assert.Equal(t, []schemas.Action{schemas.Screenshot{}}, actions)
	})

	t.Run("error names the offending index", func(t *testing.T) {
		_, err := schemas.DecodeActions([]byte(`[{"type":"wait","ms":1},{"type":"navigate"}]`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "action 1:")
	})
}

func TestEncodeAction(t *testing.T) {
	t.Parallel()
	actions := []schemas.Action{
		schemas.Type{Selector: "#q", Text: "hello", Submit: true},
		schemas.Scroll{Direction: schemas.ScrollUp, Amount: intPtr(0)},
		schemas.Extract{Description: "everything"},
		schemas.Screenshot{},
		schemas.Unknown{Type: "hover"},
	}
	for _, a := range actions {
		data, err := schemas.EncodeAction(a)
		require.NoError(t, err)
		decoded, err := schemas.DecodeAction(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, a, decoded, string(data))
	}

	data, err := schemas.EncodeAction(schemas.Click{Selector: "#go"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"click","selector":"#go"}`, string(data))
}

func TestScrollAmount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, schemas.DefaultScrollAmount, schemas.Scroll{Direction: schemas.ScrollDown}.ScrollAmount())
	assert.Equal(t, 0, schemas.Scroll{Direction: schemas.ScrollDown, Amount: intPtr(0)}.ScrollAmount())
}
