package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/userauth/internal/client/client"
	"github.com/dmitrijs2005/userauth/internal/client/config"
)

type App struct {
	api      client.Client
	reader   *bufio.Reader
	out      io.Writer
	userName string
}

func NewApp(c *config.Config) *App {
	return newApp(client.NewHTTPClient(c.ServerURL, c.RequestTimeout), os.Stdin, os.Stdout)
}

func newApp(api client.Client, in io.Reader, out io.Writer) *App {
	return &App{api: api, reader: bufio.NewReader(in), out: out}
}

// Run starts the REPL and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to userauth CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) status() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s)", a.userName)
}
