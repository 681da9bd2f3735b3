// Package cli provides the interactive userauth command-line client.
//
// It wires configuration and the HTTP API client into a small REPL:
//
//	register   create an account (avatar required, cover image optional)
//	login      authenticate with a username or email
//	me         show the current user
//	refresh    rotate the token pair
//	logout     end the session
//	exit|quit  leave the program
//
// App.Run blocks until the user exits or stdin is closed.
package cli
