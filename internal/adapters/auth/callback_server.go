package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
)

var (
	ErrStateMismatch = errors.New("oauth callback state mismatch")
	ErrMissingState  = errors.New("expected state is required")
)

var _ ports.AuthCodeSource = (*CallbackServer)(nil)

// CallbackServer receives the authorization redirect on a loopback address.
// The client must have http://localhost/auth/callback registered.
type CallbackServer struct {
	listener   net.Listener
	server     *http.Server
	out        io.Writer
	open       URLOpener
	resultCh   chan callbackResult
	resultOnce sync.Once
	closeOnce  sync.Once

	mu            sync.Mutex
	expectedState string
}

type callbackResult struct {
	code string
	err  error
}

func StartCallbackServer(listenAddr string, out io.Writer, open URLOpener) (*CallbackServer, error) {
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	if out == nil {
		out = io.Discard
	}
	if open == nil {
		open = func(string) error { return errors.New("no browser") }
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen callback server: %w", err)
	}

	cb := &CallbackServer{
		listener: listener,
		out:      out,
		open:     open,
		resultCh: make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", cb.handleCallback)

	cb.server = &http.Server{Handler: mux}

	go func() {
		if serveErr := cb.server.Serve(cb.listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			cb.trySendResult(callbackResult{err: serveErr})
		}
	}()

	return cb, nil
}

func (c *CallbackServer) RedirectURL() string {
	if tcpAddr, ok := c.listener.Addr().(*net.TCPAddr); ok {
		return fmt.Sprintf("http://localhost:%d/auth/callback", tcpAddr.Port)
	}
	return "http://localhost/auth/callback"
}

// AwaitCode presents the authorize URL and blocks until the redirect
// arrives, ctx is done, or the server fails. The server is closed on return.
func (c *CallbackServer) AwaitCode(ctx context.Context, req domain.AuthorizationRequest) (string, error) {
	defer func() { _ = c.Close() }()

	if req.State == "" {
		return "", ErrMissingState
	}
	c.mu.Lock()
	c.expectedState = req.State
	c.mu.Unlock()

	presentAuthorizationURL(c.out, c.open, req.URL)
	_, _ = fmt.Fprintln(c.out, "Waiting for the login to complete in the browser...")

	select {
	case result := <-c.resultCh:
		return result.code, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *CallbackServer) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		closeErr = c.server.Close()
	})
	return closeErr
}

func (c *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	c.mu.Lock()
	expected := c.expectedState
	c.mu.Unlock()

	// A stale tab from an earlier attempt must not end this login.
	if expected == "" || state != expected {
		http.Error(w, ErrStateMismatch.Error(), http.StatusBadRequest)
		return
	}
	if oauthError := r.URL.Query().Get("error"); oauthError != "" {
		description := r.URL.Query().Get("error_description")
		if description != "" {
			oauthError = oauthError + ": " + description
		}
		c.trySendResult(callbackResult{err: errors.New(oauthError)})
		http.Error(w, "oauth error", http.StatusBadRequest)
		return
	}
	if code == "" {
		c.trySendResult(callbackResult{err: errors.New("missing authorization code")})
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	c.trySendResult(callbackResult{code: code})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Authentication complete. You can close this window."))
}

func (c *CallbackServer) trySendResult(result callbackResult) {
	c.resultOnce.Do(func() {
		c.resultCh <- result
	})
}
