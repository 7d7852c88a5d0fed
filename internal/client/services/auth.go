// Package services contains application services for the docsync client.
// This file defines the authentication service: login, register, logout and
// the liveness probe used by the online-status watcher.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/common"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and hand the token to the engine.
//   - Register: create a new user on the server.
//   - Logout: explicit sign-out; synced documents are cleared locally.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) error
	Register(ctx context.Context, username string, password []byte) error
	Logout(ctx context.Context) error
	State() session.State
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Session is the part of the engine driven by authentication.
type Session interface {
	BeginAuth(ctx context.Context) error
	AuthChanged(ctx context.Context, token, user string, authenticated bool) error
	Logout(ctx context.Context) error
	State() session.State
}

// Authenticator is the part of the remote API used to obtain a token.
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
}

type authService struct {
	client  Authenticator
	pinger  client.Pinger
	session Session
}

// NewAuthService constructs an AuthService bound to the API client, the
// health probe and the engine.
func NewAuthService(c Authenticator, p client.Pinger, s Session) AuthService {
	return &authService{client: c, pinger: p, session: s}
}

func validateCredentials(username string, password []byte) error {
	if strings.TrimSpace(username) == "" {
		return common.NewValidationError("username", errors.New("cannot be blank"))
	}
	if len(password) == 0 {
		return common.NewValidationError("password", errors.New("cannot be blank"))
	}
	return nil
}

// Login authenticates against the server. A failed attempt returns the
// session to guest.
func (a *authService) Login(ctx context.Context, username string, password []byte) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}
	if a.session.State().IsAuthenticated() {
		return fmt.Errorf("%w: already signed in as %s", session.ErrInvalidTransition, a.session.State().User)
	}
	if err := a.session.BeginAuth(ctx); err != nil {
		return err
	}

	token, err := a.client.Login(ctx, username, string(password))
	if err != nil {
		_ = a.session.AuthChanged(ctx, "", "", false)
		return fmt.Errorf("login error: %w", err)
	}
	if err := a.session.AuthChanged(ctx, token, username, true); err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	return nil
}

// Register creates a new account on the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}
	if err := a.client.Register(ctx, username, string(password)); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

func (a *authService) State() session.State {
	return a.session.State()
}

// Ping proxies a liveness check to the health probe.
func (a *authService) Ping(ctx context.Context) error {
	return a.pinger.Ping(ctx)
}

// Close releases resources held by the health probe.
func (a *authService) Close(ctx context.Context) error {
	return a.pinger.Close()
}
