package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

const helperEnv = "PAGEPILOT_RELAY_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		runHelperAgent()
		os.Exit(0)
	}
	goleak.VerifyTestMain(m)
}

// runHelperAgent is the agent used by these tests. It echoes every line it
// reads, and asks the relay for the page context when told to "drive".
func runHelperAgent() {
	fmt.Fprintln(os.Stderr, "helper agent ready")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		var msg struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(line), &msg)
		if msg.Type == "drive" {
			fmt.Println(`{"type":"GET_PAGE_CONTEXT","id":"agent-1"}`)
			continue
		}
		fmt.Printf("{\"type\":\"echo\",\"got\":%s}\n", line)
	}
}

// stubBrowser answers every browser request with a canned response that
// carries the request id.
type stubBrowser struct {
	mu       sync.Mutex
	requests []string
}

func (b *stubBrowser) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	var req struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.requests = append(b.requests, req.Type)
	b.mu.Unlock()
	return []byte(fmt.Sprintf(`{"id":%q,"ok":true,"context":{"url":"https://app.example/","title":"Inbox"}}`, req.ID)), nil
}

func (b *stubBrowser) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

type relayFixture struct {
	addr    string
	wsURL   string
	httpURL string
	agent   *Agent
	browser *stubBrowser
}

func startRelay(t *testing.T, restartBurst int) *relayFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	agent := NewAgent(
		[]string{os.Args[0], "-test.run=^$"},
		WithEnv(helperEnv+"=1"),
		WithRestartLimit(rate.NewLimiter(rate.Every(time.Hour), restartBurst)),
		WithLogger(logger),
	)
	browser := &stubBrowser{}
	srv := NewServer(agent, browser, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("relay did not shut down")
		}
	})

	return &relayFixture{
		addr:    ln.Addr().String(),
		wsURL:   "ws://" + ln.Addr().String() + "/",
		httpURL: "http://" + ln.Addr().String() + "/",
		agent:   agent,
		browser: browser,
	}
}

func (f *relayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *relayFixture) status(t *testing.T) map[string]string {
	t.Helper()
	tr := &http.Transport{DisableKeepAlives: true}
	defer tr.CloseIdleConnections()
	resp, err := (&http.Client{Transport: tr, Timeout: 5 * time.Second}).Get(f.httpURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	out := map[string]string{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &out), "message: %s", data)
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestRelay_ForwardsToAgentAndBack(t *testing.T) {
	f := startRelay(t, 3)
	assert.Equal(t, map[string]string{"status": "ok", "agent": "stopped"}, f.status(t))

	conn := f.dial(t)
	// Pretty-printed input still reaches the agent as a single line.
	send(t, conn, "{\n  \"type\": \"prompt\",\n  \"message\": \"summarize this page\"\n}")

	msg := readMessage(t, conn)
	assert.Equal(t, "echo", msg["type"])
	assert.Equal(t, map[string]any{"type": "prompt", "message": "summarize this page"}, msg["got"])
	assert.Equal(t, "running", f.status(t)["agent"])
}

func TestRelay_MalformedMessage(t *testing.T) {
	f := startRelay(t, 3)
	conn := f.dial(t)

	send(t, conn, "not json")
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "invalid message")
}

func TestRelay_Restart(t *testing.T) {
	f := startRelay(t, 1)
	conn := f.dial(t)

	send(t, conn, `{"type":"restart"}`)
	assert.Equal(t, map[string]any{"type": "response", "command": "restart", "success": true}, readMessage(t, conn))

	// The new process answers.
	send(t, conn, `{"type":"ping"}`)
	assert.Equal(t, "echo", readMessage(t, conn)["type"])

	// The burst is spent.
	send(t, conn, `{"type":"restart"}`)
	msg := readMessage(t, conn)
	assert.Equal(t, false, msg["success"])
	assert.Equal(t, ErrRestartLimited.Error(), msg["error"])
}

func TestRelay_BrowserRequestFromClient(t *testing.T) {
	f := startRelay(t, 3)
	conn := f.dial(t)

	send(t, conn, `{"type":"GET_PAGE_CONTEXT","id":"ui-7"}`)
	msg := readMessage(t, conn)
	assert.Equal(t, "ui-7", msg["id"])
	assert.Equal(t, true, msg["ok"])
	assert.Equal(t, []string{"GET_PAGE_CONTEXT"}, f.browser.seen())
}

func TestRelay_BrowserRequestFromAgent(t *testing.T) {
	f := startRelay(t, 3)
	conn := f.dial(t)

	// The agent asks for the page context; the relay answers it directly and
	// the agent echoes the answer back out.
	send(t, conn, `{"type":"drive"}`)
	msg := readMessage(t, conn)
	require.Equal(t, "echo", msg["type"])
	got, ok := msg["got"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "agent-1", got["id"])
	assert.Equal(t, true, got["ok"])
}

func TestRelay_LatestClientReceivesAgentOutput(t *testing.T) {
	f := startRelay(t, 3)
	first := f.dial(t)
	send(t, first, `{"type":"hello","from":"first"}`)
	assert.Equal(t, "echo", readMessage(t, first)["type"])

	second := f.dial(t)
	send(t, second, `{"type":"hello","from":"second"}`)
	assert.Equal(t, "echo", readMessage(t, second)["type"])

	send(t, first, `{"type":"hello","from":"first-again"}`)
	msg := readMessage(t, second)
	assert.Equal(t, map[string]any{"type": "hello", "from": "first-again"}, msg["got"])
}

func TestAgent_SendWhenStopped(t *testing.T) {
	a := NewAgent([]string{os.Args[0]}, WithLogger(zaptest.NewLogger(t)))
	assert.ErrorIs(t, a.Send([]byte(`{}`)), ErrAgentNotRunning)
	assert.False(t, a.Running())
	a.Close()
	assert.ErrorIs(t, a.Start(), ErrAgentNotRunning, "a closed agent cannot start")
}

func TestAgent_MissingBinary(t *testing.T) {
	a := NewAgent([]string{"/nonexistent/agent-binary"}, WithLogger(zaptest.NewLogger(t)))
	defer a.Close()
	err := a.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start agent")
}

func TestFetchStatus(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}

	t.Run("running relay", func(t *testing.T) {
		f := startRelay(t, 1)
		st, err := FetchStatus(context.Background(), client, f.addr)
		require.NoError(t, err)
		assert.Equal(t, Status{Status: "ok", Agent: AgentStopped}, st)

		f.dial(t)
		require.Eventually(t, f.agent.Running, 10*time.Second, 10*time.Millisecond)
		st, err = FetchStatus(context.Background(), client, f.addr)
		require.NoError(t, err)
		assert.Equal(t, AgentRunning, st.Agent)
	})

	t.Run("nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = FetchStatus(context.Background(), client, addr)
		assert.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("not a relay", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		})}
		go func() { _ = srv.Serve(ln) }()
		defer srv.Close()

		_, err = FetchStatus(context.Background(), client, ln.Addr().String())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotRunning)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestDialAddr(t *testing.T) {
	testCases := []struct {
		listen   string
		expected string
	}{
		{":9224", "127.0.0.1:9224"},
		{"0.0.0.0:9224", "127.0.0.1:9224"},
		{"[::]:9224", "127.0.0.1:9224"},
		{"localhost:8080", "localhost:8080"},
		{"[::1]:8080", "[::1]:8080"},
	}
	for _, tc := range testCases {
		addr, err := DialAddr(tc.listen)
		require.NoError(t, err, tc.listen)
		assert.Equal(t, tc.expected, addr, tc.listen)
	}

	_, err := DialAddr("9224")
	assert.Error(t, err)
}
