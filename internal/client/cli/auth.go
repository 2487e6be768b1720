package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/librarykeeper/internal/client/client"
	"github.com/dmitrijs2005/librarykeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username, email and password and creates the
// account. On success the new session is active immediately.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Register(ctx, username, email, password)
	if err != nil {
		a.report(err)
		return err
	}

	a.setUser(u)
	fmt.Fprintf(a.out, "Registered and logged in as %s\n", u.Username)
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.authService.Login(ctx, username, password)
	if err != nil {
		a.report(err)
		return err
	}

	a.setUser(u)
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Username, u.Role)
	return nil
}

// Logout revokes the session on the server and forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	err := a.authService.Logout(ctx)
	a.setUser(nil)
	if err != nil && !errors.Is(err, client.ErrNotLoggedIn) {
		a.report(err)
		fmt.Fprintln(a.out, "Local session cleared")
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// Whoami asks the server who the current session belongs to. This is the
// path that exercises a silent token refresh.
func (a *App) Whoami(ctx context.Context) error {
	u, err := a.authService.Me(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	a.setUser(u)
	fmt.Fprintf(a.out, "%s <%s> role=%s id=%s\n", u.Username, u.Email, u.Role, u.ID)
	return nil
}

// Status reports whether the server is reachable.
func (a *App) Status(ctx context.Context) error {
	if err := a.authService.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		a.report(err)
		return err
	}
	a.setMode(ModeOnline)
	fmt.Fprintln(a.out, "Server is healthy")
	return nil
}

// report prints err for the user. An expired session also ends the local
// login state.
func (a *App) report(err error) {
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		a.setUser(nil)
		fmt.Fprintln(a.out, "Session expired, please log in again")
	case errors.Is(err, client.ErrNotLoggedIn):
		a.setUser(nil)
		fmt.Fprintln(a.out, "Not logged in")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(a.out, "Error:", apiErr.Error())
			return
		}
		fmt.Fprintln(a.out, "Error:", err)
	}
}
