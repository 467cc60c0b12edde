package schemas

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// MessageType discriminates the browser-control requests carried on the bus.
type MessageType string

const (
	MessageExecuteAction  MessageType = "EXECUTE_ACTION"
	MessageGetPageContext MessageType = "GET_PAGE_CONTEXT"
)

// Request is a browser-control request. Action is kept raw so that decoding
// errors can be reported per request.
type Request struct {
	Type   MessageType         `json:"type"`
	ID     string              `json:"id,omitempty"`
	Action jsoniter.RawMessage `json:"action,omitempty"`
}

// Response answers a Request. Result carries an action payload, Context a
// page snapshot.
type Response struct {
	ID      string       `json:"id,omitempty"`
	OK      bool         `json:"ok"`
	Result  any          `json:"result,omitempty"`
	Context *PageContext `json:"context,omitempty"`
	Error   string       `json:"error,omitempty"`
	Kind    FailureKind  `json:"kind,omitempty"`
}

// IsBrowserRequest reports whether a message type is handled by the
// browser-control bus.
func IsBrowserRequest(t MessageType) bool {
	return t == MessageExecuteAction || t == MessageGetPageContext
}

// DecodeRequest parses a bus request. Unknown message types are returned
// as-is so callers can decide whether to forward them.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := wire.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

// ResponseFromResult renders an action outcome as a bus response.
func ResponseFromResult(id string, r ActionResult) Response {
	if r.Failure != nil {
		return Response{ID: id, OK: false, Error: r.Failure.Reason, Kind: r.Failure.Kind}
	}
	return Response{ID: id, OK: true, Result: r.Payload}
}

// ErrorResponse builds a failed response for a request that could not be
// executed at all.
func ErrorResponse(id string, err error) Response {
	return Response{ID: id, OK: false, Error: err.Error()}
}

// Marshal encodes any bus value with the wire codec.
func Marshal(v any) ([]byte, error) {
	return wire.Marshal(v)
}
