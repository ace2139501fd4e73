package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CallbackServer receives the OAuth redirect on a loopback port.
type CallbackServer struct {
	port int
}

// NewCallbackServer listens on port once Listen is called. Port 0 picks a
// free port.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{port: port}
}

type callbackResult struct {
	code string
	err  error
}

// Callback is one armed listener waiting for a single redirect.
type Callback struct {
	srv      *http.Server
	addr     net.Addr
	result   chan callbackResult
	closeErr error
	once     sync.Once
}

// Listen binds the port and starts serving the callback path. The listener
// is ready when Listen returns, so the browser can be opened right after.
func (s *CallbackServer) Listen(expectedState string) (*Callback, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	cb := &Callback{
		addr:   ln.Addr(),
		result: make(chan callbackResult, 1),
	}

	router := gin.New()
	router.GET(CallbackPath, func(c *gin.Context) {
		switch {
		case c.Query("error") != "":
			c.String(http.StatusForbidden, "Authorization was denied. You can close this window.")
			cb.deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrAccessDenied, c.Query("error"))})
		case c.Query("state") != expectedState:
			c.String(http.StatusBadRequest, "Invalid state parameter.")
			cb.deliver(callbackResult{err: ErrInvalidState})
		case c.Query("code") == "":
			c.String(http.StatusBadRequest, "Missing authorization code.")
			cb.deliver(callbackResult{err: ErrMissingCode})
		default:
			c.String(http.StatusOK, "Authorization complete. You can close this window and return to channelscope.")
			cb.deliver(callbackResult{code: c.Query("code")})
		}
	})

	cb.srv = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := cb.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cb.deliver(callbackResult{err: fmt.Errorf("callback server failed: %w", err)})
		}
	}()

	return cb, nil
}

// Addr is the address the listener is bound to.
func (c *Callback) Addr() net.Addr {
	return c.addr
}

// first result wins; later redirects are answered but ignored
func (c *Callback) deliver(r callbackResult) {
	select {
	case c.result <- r:
	default:
	}
}

// Wait blocks until the redirect arrives or ctx is done.
func (c *Callback) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-c.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("timed out waiting for authorization: %w", ctx.Err())
	}
}

// Close shuts the listener down. It is safe to call more than once.
func (c *Callback) Close() error {
	c.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.closeErr = c.srv.Shutdown(ctx)
	})
	return c.closeErr
}
