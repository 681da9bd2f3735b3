package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userauth/internal/client/client"
	"github.com/dmitrijs2005/userauth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// Register prompts for the registration form and creates the account.
// It does not log the user in.
func (a *App) Register(ctx context.Context) error {
	var req client.RegisterRequest
	var err error

	if req.Username, err = a.ask("Enter username"); err != nil {
		return err
	}
	if req.Email, err = a.ask("Enter email"); err != nil {
		return err
	}
	if req.FullName, err = a.ask("Enter full name"); err != nil {
		return err
	}
	if req.AvatarPath, err = a.ask("Path to avatar image"); err != nil {
		return err
	}
	if req.CoverImagePath, err = a.ask("Path to cover image (optional)"); err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	u, err := a.api.Register(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s)\n", u.UserName, u.ID)
	return nil
}

// Login accepts a username or an email.
func (a *App) Login(ctx context.Context) error {
	identifier, err := a.ask("Enter username or email")
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Login(ctx, identifier, string(password))
	if err != nil {
		return err
	}

	a.userName = u.UserName
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.CurrentUser(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "id:       %s\n", u.ID)
	fmt.Fprintf(a.out, "username: %s\n", u.UserName)
	fmt.Fprintf(a.out, "email:    %s\n", u.Email)
	fmt.Fprintf(a.out, "fullname: %s\n", u.FullName)
	fmt.Fprintf(a.out, "avatar:   %s\n", u.AvatarURL)
	if u.CoverImageURL != "" {
		fmt.Fprintf(a.out, "cover:    %s\n", u.CoverImageURL)
	}
	return nil
}
