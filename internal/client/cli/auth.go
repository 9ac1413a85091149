package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// getSimpleText and getPassword are indirections swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

const defaultLoginMethod = "email"

// report prints err in a user-facing form and returns it unchanged. A
// missing local session also resets the prompt.
func (a *App) report(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		fmt.Fprintf(a.out, "Error: %s\n", apiErr.Error())
		for _, d := range apiErr.Details {
			fmt.Fprintf(a.out, "  %s: %s\n", d.Field, d.Message)
		}
	case errors.Is(err, client.ErrNotLoggedIn):
		a.userName = ""
		fmt.Fprintln(a.out, "You are not logged in. Use 'login' or 'signup'.")
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later.")
	default:
		fmt.Fprintf(a.out, "Error: %v\n", err)
	}
	return err
}

func (a *App) askLoginMethod() (string, error) {
	m, err := getSimpleText(a.reader, "Login method [email]", a.out)
	if err != nil {
		return "", err
	}
	if m == "" {
		m = defaultLoginMethod
	}
	return m, nil
}

// askPassword reads a password; with confirm it is asked twice and both
// values are returned.
func (a *App) askPassword(confirm bool) (string, string, error) {
	pw, err := getPassword("Enter password", a.out)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(pw)

	if !confirm {
		return string(pw), "", nil
	}

	again, err := getPassword("Repeat password", a.out)
	if err != nil {
		return "", "", err
	}
	defer common.WipeByteArray(again)

	return string(pw), string(again), nil
}

// Signup prompts for the account fields and registers a new user. The new
// session becomes the current one.
func (a *App) Signup(ctx context.Context) error {
	var req models.SignupRequest
	var err error

	if req.Username, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return err
	}
	if req.PhoneNumber, err = getSimpleText(a.reader, "Enter phone number", a.out); err != nil {
		return err
	}
	if req.Password, req.ConfirmPassword, err = a.askPassword(true); err != nil {
		return err
	}
	if req.LoginMethod, err = a.askLoginMethod(); err != nil {
		return err
	}

	s, err := a.authService.Signup(ctx, req)
	if err != nil {
		return a.report(err)
	}

	a.userName = s.Username
	fmt.Fprintf(a.out, "Welcome, %s! Account #%d created.\n", s.Username, s.UserID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	var req models.LoginRequest
	var err error

	if req.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return err
	}
	if req.Password, _, err = a.askPassword(false); err != nil {
		return err
	}
	if req.LoginMethod, err = a.askLoginMethod(); err != nil {
		return err
	}

	s, err := a.authService.Login(ctx, req)
	if err != nil {
		return a.report(err)
	}

	a.userName = s.Username
	fmt.Fprintf(a.out, "Logged in as %s.\n", s.Username)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.authService.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Tokens refreshed.")
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func (a *App) Me(ctx context.Context) error {
	p, err := a.authService.Me(ctx)
	if err != nil {
		return a.report(err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "User ID:\t%d\n", p.UserID)
	fmt.Fprintf(w, "Username:\t%s\n", p.Username)
	fmt.Fprintf(w, "Email:\t%s\n", p.Email)
	fmt.Fprintf(w, "Phone:\t%s\n", p.PhoneNumber)
	fmt.Fprintf(w, "Login method:\t%s\n", p.LoginMethod)
	fmt.Fprintf(w, "Member since:\t%s\n", formatTime(&p.CreatedAt))
	fmt.Fprintf(w, "Active sessions:\t%d\n", p.ActiveSessions)
	fmt.Fprintf(w, "Last login:\t%s\n", formatTime(p.LastLogin))
	return w.Flush()
}

// Sessions prints the session history. An optional first argument limits
// the number of rows.
func (a *App) Sessions(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			fmt.Fprintln(a.out, "Usage: sessions [limit]")
			return fmt.Errorf("bad limit %q", args[0])
		}
		limit = n
	}

	list, err := a.authService.Sessions(ctx, limit)
	if err != nil {
		return a.report(err)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tMETHOD\tIP\tSTARTED\tENDED")
	for _, s := range list {
		status := "closed"
		if s.IsActive {
			status = "active"
		}
		ip := "-"
		if s.IPAddress != nil {
			ip = *s.IPAddress
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, status, s.LoginMethod, ip, formatTime(&s.CreatedAt), formatTime(s.LoggedOutAt))
	}
	return w.Flush()
}

// Logout closes every server session of the user and forgets local tokens.
func (a *App) Logout(ctx context.Context) error {
	n, err := a.authService.Logout(ctx)
	if err != nil && !client.IsCode(err, common.ErrNoActiveSessions.Code) {
		return a.report(err)
	}

	a.userName = ""
	if err != nil {
		fmt.Fprintln(a.out, "No active sessions; local tokens cleared.")
		return nil
	}
	fmt.Fprintf(a.out, "Logged out, %d session(s) closed.\n", n)
	return nil
}
