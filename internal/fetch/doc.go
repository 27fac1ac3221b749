// Package fetch provides the HTTP layer for relaypoll.
//
// This package is internal to relaypoll and performs the single GET
// request behind each poll attempt. It knows nothing about polling,
// message validation, or retry policy; those live in the root package.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeouts and pooling
//   - [NetworkError]: Classified fetch failure (transport, status, timeout)
//
// Users of the relaypoll library should not need to interact with this
// package directly.
package fetch
