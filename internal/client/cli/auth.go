package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login authenticates against the server. The email comes from args or is
// prompted for; the password is always read from the terminal and wiped
// before returning.
//
// Login needs the network: the edge proxy answers an offline login with a
// synthesized 503 without contacting the backend. A session stored by an
// earlier login keeps working offline.
func (a *App) Login(ctx context.Context, args []string) error {
	email := ""
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
			return err
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.authService.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			return fmt.Errorf("server unavailable, login needs a connection: %w", err)
		}
		return err
	}

	a.setSession(&sess)
	fmt.Fprintf(a.out, "Login successful: %s (%s)\n", sess.Email, sess.Role)
	return nil
}

// Logout forgets the stored token. Queued changes stay queued.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.setSession(nil)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context, _ []string) error {
	sess := a.currentSession()
	if sess == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s  user=%s  role=%s", sess.Email, sess.UserID, sess.Role)
	if !sess.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "  expires=%s", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(a.out)
	return nil
}
