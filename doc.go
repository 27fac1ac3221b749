// Package relaypoll waits for out-of-band messages, such as
// verification codes and login links, relayed through an HTTP bridge.
//
// A bridge exposes a shared message map as a JSON object keyed by an
// opaque identifier (commonly an email address). relaypoll polls that
// map at a fixed interval until an entry for the requested key appears
// that matches the requested type, has not expired, and was emitted
// recently enough, or until an overall timeout elapses. Polling is the
// only transport model: the bridge is assumed to exist and is never
// implemented here.
//
// # Quick Start
//
// Create a listener, build a request, and wait:
//
//	l, _ := relaypoll.New(relaypoll.WithEndpoint("https://bridge.example.com/messages"))
//	defer l.Close()
//
//	req, _ := relaypoll.NewRequest("user@example.com", "login-code",
//	    relaypoll.WithTimeout(2 * time.Minute),
//	    relaypoll.WithRetroBack(time.Minute),
//	)
//
//	outcome, err := l.ListenFrom(ctx, req)
//	if err != nil {
//	    // bad arguments, no endpoint, or a malformed bridge response
//	}
//	switch outcome.State {
//	case relaypoll.StateSuccess:
//	    var code string
//	    _ = json.Unmarshal(outcome.Data, &code)
//	case relaypoll.StateTimeout:
//	    // no acceptable message within the budget
//	}
//
// # Timing Model
//
// Two independent timeouts exist at different layers. The per-attempt
// network timeout ([WithRequestTimeout]) aborts one fetch and is
// absorbed as a transient failure; the overall budget ([WithTimeout])
// ends the whole operation with a [StateTimeout] outcome. Attempts are
// spaced by [WithInterval] and strictly serialized: the interval is
// measured from when a cycle completes, so fetches never overlap. The
// first fetch fires one full interval after the call starts.
//
// # Error Model
//
// Timeout is a normal outcome, not an error. Transient network
// failures are retried silently. Errors are reserved for conditions
// the caller must act on: invalid arguments ([ErrInvalidRequest]), an
// unresolvable endpoint ([ErrNoEndpoint]), and a bridge body that is
// not valid JSON ([*ParseError], a structural problem that will not
// self-correct, so it stops polling immediately).
//
// # Architecture
//
// The public API lives in this package. internal/fetch performs the
// single GET behind each attempt. The config package and cmd/relaypoll
// provide YAML configuration and a standalone CLI for running waits
// outside a Go program. The internal packages are not part of the
// public API and may change without notice.
package relaypoll
