package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/docsync/internal/common"
)

// Register prompts for a username and password and creates the account.
// The password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := askLine(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := askPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, userName, password); err != nil {
		return err
	}

	a.println("Success! You can now log in.")
	return nil
}

// Login prompts for credentials and signs in. Local documents stay usable
// when the backend is unreachable; the session starts once it answers.
func (a *App) Login(ctx context.Context) error {
	userName, err := askLine(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := askPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, userName, password); err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			a.setMode(ModeOffline)
			a.println("Server unavailable, you keep working locally.")
		}
		a.logger.Warn(ctx, "login unsuccessful", "error", err)
		return err
	}

	a.setMode(ModeOnline)
	a.logger.Info(ctx, "login successful", "user", userName)
	a.printf("Signed in as %s\n", userName)
	return nil
}

// Logout signs out. Documents already on the server are removed locally;
// unsynced ones remain and come back as recovery records.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.println("Signed out.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st := a.engine.State()
	a.printf("session: %s\n", st.Status)
	if st.User != "" {
		a.printf("user:    %s\n", st.User)
	}
	a.printf("mode:    %s\n", a.mode())
	a.printf("queued:  %d\n", len(a.engine.Pending()))
	a.printf("recover: %d\n", len(a.engine.Records()))
	return nil
}
