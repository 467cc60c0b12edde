// Package bus answers browser-control requests: EXECUTE_ACTION runs one
// action, GET_PAGE_CONTEXT returns a page snapshot.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Executor is the engine surface the bus drives.
type Executor interface {
	Execute(ctx context.Context, action schemas.Action) schemas.ActionResult
	Snapshot(ctx context.Context) (schemas.PageContext, error)
}

// Navigator performs a full page load, waiting for the new document.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Handler serializes requests against one page. Only one action runs at a
// time.
type Handler struct {
	mu       sync.Mutex
	executor Executor
	nav      Navigator
	logger   *zap.Logger
}

// NewHandler creates a Handler. With a nil navigator, navigate actions go to
// the executor like every other action.
func NewHandler(executor Executor, nav Navigator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		executor: executor,
		nav:      nav,
		logger:   logger.Named("bus"),
	}
}

// Handle answers one request. The response carries the request's id.
func (h *Handler) Handle(ctx context.Context, req schemas.Request) schemas.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := h.logger.With(zap.String("request_id", requestID), zap.String("type", string(req.Type)))

	switch req.Type {
	case schemas.MessageExecuteAction:
		action, err := schemas.DecodeAction(req.Action)
		if err != nil {
			log.Warn("Rejected action.", zap.Error(err))
			return schemas.ErrorResponse(req.ID, err)
		}
		start := time.Now()
		result := h.execute(ctx, action)
		log.Info("Action finished.",
			zap.String("action", string(action.Kind())),
			zap.Bool("ok", result.OK()),
			zap.String("error", result.Error()),
			zap.Duration("took", time.Since(start)),
		)
		return schemas.ResponseFromResult(req.ID, result)

	case schemas.MessageGetPageContext:
		pc, err := h.executor.Snapshot(ctx)
		if err != nil {
			log.Warn("Snapshot failed.", zap.Error(err))
			return schemas.ErrorResponse(req.ID, fmt.Errorf("failed to read page context: %w", err))
		}
		return schemas.Response{ID: req.ID, OK: true, Context: &pc}

	default:
		log.Warn("Unsupported message type.")
		return schemas.ErrorResponse(req.ID, fmt.Errorf("unsupported message type %q", req.Type))
	}
}

// HandleMessage decodes a raw request and returns the encoded response.
// Only an encoding failure is returned as an error; every other problem is
// reported in the response itself.
func (h *Handler) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	req, err := schemas.DecodeRequest(data)
	if err != nil {
		return schemas.Marshal(schemas.ErrorResponse("", err))
	}
	return schemas.Marshal(h.Handle(ctx, req))
}

// RunBatch executes actions in order. A cancellation between actions stops
// the batch; the results gathered so far are returned with ctx's error.
func (h *Handler) RunBatch(ctx context.Context, actions []schemas.Action) ([]schemas.ActionResult, error) {
	results := make([]schemas.ActionResult, 0, len(actions))
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			h.logger.Info("Batch stopped.", zap.Int("completed", i), zap.Int("total", len(actions)))
			return results, err
		}
		h.mu.Lock()
		result := h.execute(ctx, action)
		h.mu.Unlock()
		results = append(results, result)
	}
	return results, nil
}

func (h *Handler) execute(ctx context.Context, action schemas.Action) schemas.ActionResult {
	nav, ok := action.(schemas.Navigate)
	if !ok || h.nav == nil {
		return h.executor.Execute(ctx, action)
	}
	if err := h.nav.Navigate(ctx, nav.URL); err != nil {
		return schemas.Failed(schemas.FailureExecution, err.Error())
	}
	return schemas.Succeeded(schemas.NavigateResult{Navigated: nav.URL})
}
