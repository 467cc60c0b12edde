package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 8 << 20

	shutdownTimeout = 5 * time.Second
)

// BrowserHandler answers browser-control requests (see bus.Handler).
type BrowserHandler interface {
	HandleMessage(ctx context.Context, data []byte) ([]byte, error)
}

// Server accepts WebSocket clients and relays their messages to the agent.
// The most recent client receives the agent's output.
type Server struct {
	agent    *Agent
	browser  BrowserHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	active  *client
	closed  bool
	baseCtx context.Context
	wg      sync.WaitGroup
}

type client struct {
	id   string
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

// NewServer creates a relay. browser may be nil, in which case
// browser-control requests are forwarded like any other message.
func NewServer(agent *Agent, browser BrowserHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		agent:   agent,
		browser: browser,
		logger:  logger.Named("relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are browser extensions, whose origin is an extension id.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		baseCtx: context.Background(),
	}
}

// Run listens on addr and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("Relay listening.", zap.String("addr", "ws://"+ln.Addr().String()))
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then disconnects every client
// and stops the agent.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.pumpAgent(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeClients()
		s.agent.Close()
		return err
	})

	err := g.Wait()
	s.wg.Wait()
	s.logger.Info("Relay stopped.")
	return err
}

// Handler serves the status endpoint and WebSocket upgrades on the same
// path.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			s.handleWS(w, r)
			return
		}
		s.handleStatus(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{Status: "ok", Agent: AgentStopped}
	if s.agent.Running() {
		status.Agent = AgentRunning
	}
	body, err := schemas.Marshal(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(body)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 256),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.active = c
	ctx := s.baseCtx
	s.wg.Add(2)
	s.mu.Unlock()
	s.logger.Info("Client connected.", zap.String("client_id", c.id), zap.String("remote", r.RemoteAddr))

	if err := s.agent.Start(); err != nil {
		s.logger.Error("Failed to start agent.", zap.Error(err))
		s.deliver(c, errorMessage(err))
	}

	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(ctx, c)
	}()
}

// readPump pumps messages from the websocket connection to the agent.
func (s *Server) readPump(ctx context.Context, c *client) {
	defer s.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("Websocket client read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		s.fromClient(ctx, c, message)
	}
}

// writePump pumps queued messages to the websocket connection, one frame per
// message.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type messageHead struct {
	Type string `json:"type"`
}

func (s *Server) fromClient(ctx context.Context, c *client, message []byte) {
	var head messageHead
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(message, &head); err != nil {
		s.deliver(c, errorMessage(fmt.Errorf("invalid message: %w", err)))
		return
	}
	log := s.logger.With(zap.String("client_id", c.id), zap.String("type", head.Type))

	switch {
	case head.Type == "restart":
		err := s.agent.Restart()
		if err != nil {
			log.Warn("Agent restart refused.", zap.Error(err))
		} else {
			log.Info("Agent restarted on request.")
		}
		s.deliver(c, restartResponse(err))

	case schemas.IsBrowserRequest(schemas.MessageType(head.Type)) && s.browser != nil:
		out, err := s.browser.HandleMessage(ctx, message)
		if err != nil {
			log.Error("Browser request failed.", zap.Error(err))
			s.deliver(c, errorMessage(err))
			return
		}
		s.deliver(c, out)

	default:
		// The agent reads one JSON document per line.
		var line bytes.Buffer
		if err := json.Compact(&line, message); err != nil {
			s.deliver(c, errorMessage(fmt.Errorf("invalid message: %w", err)))
			return
		}
		if err := s.agent.Send(line.Bytes()); err != nil {
			log.Error("Failed to forward message to agent.", zap.Error(err))
			s.deliver(c, errorMessage(err))
			return
		}
		log.Debug("Forwarded message to agent.")
	}
}

// pumpAgent routes agent output until ctx is canceled.
func (s *Server) pumpAgent(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.agent.Lines():
			s.fromAgent(ctx, line)
		}
	}
}

func (s *Server) fromAgent(ctx context.Context, line []byte) {
	var head messageHead
	isJSON := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(line, &head) == nil

	if isJSON && s.browser != nil && schemas.IsBrowserRequest(schemas.MessageType(head.Type)) {
		out, err := s.browser.HandleMessage(ctx, line)
		if err != nil {
			s.logger.Error("Browser request from agent failed.", zap.Error(err))
			return
		}
		if err := s.agent.Send(out); err != nil {
			s.logger.Warn("Failed to answer agent.", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active == nil {
		s.logger.Debug("Dropping agent output, no client connected.", zap.String("type", head.Type))
		return
	}
	s.deliver(active, line)
}

// deliver queues message for c. Messages for a client that is gone or whose
// queue is full are dropped.
func (s *Server) deliver(c *client, message []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	select {
	case c.send <- message:
	default:
		s.logger.Warn("Client send queue full, dropping message.", zap.String("client_id", c.id))
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	if s.active == c {
		s.active = nil
	}
	s.logger.Info("Client disconnected.", zap.String("client_id", c.id))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.active = nil
}

type errorPayload struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type commandResponse struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func errorMessage(err error) []byte {
	out, _ := schemas.Marshal(errorPayload{Type: "error", Error: err.Error()})
	return out
}

func restartResponse(err error) []byte {
	resp := commandResponse{Type: "response", Command: "restart", Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	out, _ := schemas.Marshal(resp)
	return out
}
