package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/userauth/internal/client/client"
)

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) error
}

// runREPL reads commands from in until EOF or exit/quit. Command errors are
// reported to out and do not stop the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "ua %s> ", statusFn())
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var cmdErr error
		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: me, refresh, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, login, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "refresh":
			cmdErr = a.Refresh(ctx)
		case "me":
			cmdErr = a.Me(ctx)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", parts[0])
		}

		if cmdErr != nil {
			fmt.Fprintln(out, "Error:", describe(cmdErr))
		}
	}
}

func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable"
	case errors.Is(err, client.ErrNotLoggedIn):
		return "please log in first"
	default:
		return err.Error()
	}
}
