package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// Agent states reported by the status endpoint.
const (
	AgentRunning = "running"
	AgentStopped = "stopped"
)

// ErrNotRunning is returned by FetchStatus when nothing accepts connections
// on the relay address.
var ErrNotRunning = errors.New("relay is not running")

// Status is the relay's answer to a plain GET on its listen address.
type Status struct {
	Status string `json:"status"`
	Agent  string `json:"agent"`
}

// DialAddr turns a listen address such as ":9224" into one a local client can
// connect to.
func DialAddr(listenAddr string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port), nil
}

// FetchStatus queries the relay listening on addr (host:port).
func FetchStatus(ctx context.Context, client *http.Client, addr string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/", nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to build status request: %w", err)
	}
	// One-shot probe; don't leave an idle connection behind.
	req.Close = true

	resp, err := client.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return Status{}, fmt.Errorf("%w on %s", ErrNotRunning, addr)
		}
		return Status{}, fmt.Errorf("relay on %s is not responding: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("relay on %s answered %s", addr, resp.Status)
	}
	var st Status
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("failed to decode relay status: %w", err)
	}
	if st.Status != "ok" {
		return st, fmt.Errorf("relay on %s reports status %q", addr, st.Status)
	}
	return st, nil
}
