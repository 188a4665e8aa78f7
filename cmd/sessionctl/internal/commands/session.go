package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/pkg/errors"
)

type StatusCmd struct{}

func (s *StatusCmd) Run(globals *Globals) error {
	m := globals.Manager
	out := globals.Out

	if user := m.User(); user != nil {
		fmt.Fprintf(out, "Signed in as %s <%s>\n", user.DisplayName(), user.Email)
		fmt.Fprintf(out, "Admin:      %s\n", yesNo(m.IsAdmin()))
	} else {
		fmt.Fprintln(out, "Not signed in")
	}
	fmt.Fprintf(out, "State:      %s\n", m.State())

	types := make([]string, 0, len(m.BiometryTypes()))
	for _, t := range m.BiometryTypes() {
		types = append(types, string(t))
	}
	fmt.Fprintf(out, "Biometry:   available=%s enabled=%s %s\n", yesNo(m.BiometryAvailable()), yesNo(m.BiometryEnabled()), strings.Join(types, ","))
	fmt.Fprintf(out, "PIN set:    %s\n", yesNo(m.HasPin()))
	return nil
}

type LoginCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" required:"" env:"SESSION_PASSWORD"`
	Code     string `help:"MFA code; prompted for when omitted and the account needs one"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	result, err := globals.Manager.SignIn(ctx, l.Email, l.Password)
	if err != nil {
		return err
	}
	if !result.MFARequired() {
		fmt.Fprintf(globals.Out, "Signed in as %s\n", result.User.DisplayName())
		return nil
	}

	code := l.Code
	if code == "" {
		if code, err = prompt(globals.In, globals.Out, "MFA code: "); err != nil {
			return errors.Wrap(err, "read mfa code")
		}
	}

	user, err := globals.Manager.VerifyMFA(ctx, code, result.Challenge.Identifier, l.Email)
	if err != nil {
		return err
	}
	return reportVerified(globals, user)
}

// VerifyMFACmd answers a challenge issued to another client, identified
// by its temp token or numeric user id.
type VerifyMFACmd struct {
	Identifier string `help:"Temp token or numeric user id from the challenge" required:""`
	Code       string `help:"Six digit code" required:""`
	Email      string `help:"Email used to look up the profile if the service returns none"`
}

func (v *VerifyMFACmd) Run(ctx context.Context, globals *Globals) error {
	id, err := auth.ParseMFAIdentifier(v.Identifier)
	if err != nil {
		return err
	}
	user, err := globals.Manager.VerifyMFA(ctx, v.Code, id, v.Email)
	if err != nil {
		return err
	}
	return reportVerified(globals, user)
}

func reportVerified(globals *Globals, user *users.User) error {
	if user == nil {
		fmt.Fprintln(globals.Out, "Code accepted; sign in again to load your profile")
		return nil
	}
	fmt.Fprintf(globals.Out, "Signed in as %s\n", user.DisplayName())
	return nil
}

type RegisterCmd struct {
	Email    string `help:"Account email" required:""`
	Password string `help:"Account password" required:"" env:"SESSION_PASSWORD"`
	Name     string `help:"Display name" required:""`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	if err := globals.Manager.SignUp(ctx, r.Email, r.Password, r.Name); err != nil {
		return err
	}
	fmt.Fprintln(globals.Out, "Account created; sign in to continue")
	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	if err := globals.Manager.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(globals.Out, "Signed out")
	return nil
}
