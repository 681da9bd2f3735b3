package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/userauth/internal/client/client"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	err      error
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error {
	f.calls = append(f.calls, "register")
	return f.err
}
func (f *fakeExec) Login(ctx context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return f.err
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return f.err
}
func (f *fakeExec) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return f.err
}
func (f *fakeExec) Me(ctx context.Context) error { f.calls = append(f.calls, "me"); return f.err }

func TestRunREPL_Dispatch(t *testing.T) {
	f := &fakeExec{}
	var out bytes.Buffer
	input := strings.Join([]string{"help", "", "register", "login", "help", "me", "refresh", "logout", "bogus", "exit", "me"}, "\n") + "\n"

	runREPL(context.Background(), f, func() string { return "" }, rdr(input), &out)

	assert.Equal(t, []string{"register", "login", "me", "refresh", "logout"}, f.calls)
	s := out.String()
	assert.Contains(t, s, "Available commands: register, login, exit")
	assert.Contains(t, s, "Available commands: me, refresh, logout, exit")
	assert.Contains(t, s, "Unknown command: bogus")
	assert.Contains(t, s, "Bye!")
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	f := &fakeExec{}
	var out bytes.Buffer

	runREPL(context.Background(), f, func() string { return "(alice)" }, rdr("me"), &out)

	assert.Equal(t, []string{"me"}, f.calls)
	assert.True(t, strings.HasPrefix(out.String(), "ua (alice)> "))
}

func TestRunREPL_ReportsErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&client.APIError{Status: 409, Message: "User with email or username already exists"}, "Error: User with email or username already exists"},
		{fmt.Errorf("%w: dial", client.ErrUnavailable), "Error: server unavailable"},
		{client.ErrNotLoggedIn, "Error: please log in first"},
		{errors.New("boom"), "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			f := &fakeExec{err: tt.err}
			var out bytes.Buffer
			runREPL(context.Background(), f, func() string { return "" }, rdr("register\nexit\n"), &out)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
