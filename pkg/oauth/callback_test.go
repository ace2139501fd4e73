// Callback server tests document the OAuth redirect handling:
// - the listener is ready as soon as Listen returns
// - the authorization code is extracted from the redirect
// - a mismatched state is rejected (CSRF protection)
// - a denied consent is reported
// - waiting stops when the context ends
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func hitCallback(t *testing.T, cb *Callback, query string) int {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://%s%s?%s", cb.Addr(), CallbackPath, query))
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestCallback_ReceivesCode(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("state-123")
	require.NoError(t, err)
	defer cb.Close()

	status := hitCallback(t, cb, "code=auth-code-xyz&state=state-123")
	code, err := cb.Wait(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "auth-code-xyz", code)
}

func TestCallback_RejectsInvalidState(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("correct-state")
	require.NoError(t, err)
	defer cb.Close()

	status := hitCallback(t, cb, "code=some-code&state=wrong-state")
	_, err = cb.Wait(context.Background())

	assert.Equal(t, http.StatusBadRequest, status)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCallback_ReportsDeniedConsent(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("s")
	require.NoError(t, err)
	defer cb.Close()

	status := hitCallback(t, cb, "error=access_denied&state=s")
	_, err = cb.Wait(context.Background())

	assert.Equal(t, http.StatusForbidden, status)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestCallback_MissingCode(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("s")
	require.NoError(t, err)
	defer cb.Close()

	hitCallback(t, cb, "state=s")
	_, err = cb.Wait(context.Background())

	assert.ErrorIs(t, err, ErrMissingCode)
}

func TestCallback_WaitHonoursContext(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("s")
	require.NoError(t, err)
	defer cb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = cb.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "expected timeout, got %v", err)
}

func TestCallback_CloseIsIdempotent(t *testing.T) {
	cb, err := NewCallbackServer(0).Listen("s")
	require.NoError(t, err)

	assert.NoError(t, cb.Close())
	assert.NoError(t, cb.Close())
}
