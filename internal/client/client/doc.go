// Package client talks to the userauth HTTP API.
//
// HTTPClient keeps the current token pair in memory, sends the access token
// as a Bearer header and, when a protected call is rejected with 401, refreshes
// the pair once and retries. Server-side failures are surfaced as *APIError;
// transport failures wrap ErrUnavailable.
package client
