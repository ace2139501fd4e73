package oauth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// LocalServerFlow runs the installed-app consent flow: a loopback listener
// receives the redirect and the code is exchanged at the token endpoint.
type LocalServerFlow struct {
	config *oauth2.Config
	server *CallbackServer
}

func NewLocalServerFlow(config *oauth2.Config, port int) *LocalServerFlow {
	return &LocalServerFlow{config: config, server: NewCallbackServer(port)}
}

// Begin arms the callback listener and builds the consent URL.
func (f *LocalServerFlow) Begin(_ context.Context) (*Pending, error) {
	state := uuid.NewString()

	cb, err := f.server.Listen(state)
	if err != nil {
		return nil, err
	}

	authURL := f.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	wait := func(ctx context.Context) (*oauth2.Token, error) {
		code, err := cb.Wait(ctx)
		if err != nil {
			return nil, err
		}
		token, err := f.config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange failed: %w", err)
		}
		return token, nil
	}

	return NewPending(authURL, wait, cb.Close), nil
}
