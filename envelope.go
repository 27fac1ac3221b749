package relaypoll

import (
	"encoding/json"
	"time"
)

// envelope is the wire shape of one entry in the bridge's message map.
//
// Pointer fields distinguish absent from zero: structural validation
// requires type, data, and numeric meta.timestamp/meta.expiration to
// all be present. An entry failing these checks is not an error, just
// "not yet": the sender may still be writing it.
type envelope struct {
	Type *string         `json:"type"`
	Data json.RawMessage `json:"data"`
	Meta *envelopeMeta   `json:"meta"`
}

type envelopeMeta struct {
	Timestamp  *int64 `json:"timestamp"`
	Expiration *int64 `json:"expiration"`
}

// decodeMessageMap parses a response body as the bridge's top-level
// mapping from key strings to raw entries. A body that is not a JSON
// object is a *ParseError: a malformed bridge response will not
// self-correct, so it is fatal rather than retried.
func decodeMessageMap(body string) (map[string]json.RawMessage, error) {
	var messages map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &messages); err != nil {
		return nil, &ParseError{Err: err}
	}
	return messages, nil
}

// decodeEnvelope parses one raw entry and applies structural validation.
// ok is false when the entry is malformed: wrong shape, missing
// type/data/meta, non-numeric timestamp or expiration, or a negative
// expiration. Entry-level malformation never aborts the listen.
func decodeEnvelope(raw json.RawMessage) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	if env.Type == nil || len(env.Data) == 0 || env.Meta == nil {
		return envelope{}, false
	}
	if env.Meta.Timestamp == nil || env.Meta.Expiration == nil || *env.Meta.Expiration < 0 {
		return envelope{}, false
	}
	return env, true
}

// acceptable reports whether a structurally valid envelope satisfies
// the request at the evaluation instant: declared type matches, the
// message has not expired, and it was emitted within the retroBack
// window. Both time boundaries are inclusive.
func (e envelope) acceptable(req Request, now time.Time) bool {
	if *e.Type != req.msgType {
		return false
	}
	nowSec := now.Unix()
	ts := *e.Meta.Timestamp
	if nowSec > ts+*e.Meta.Expiration {
		return false
	}
	if ts < nowSec-int64(req.retroBack/time.Second) {
		return false
	}
	return true
}

// meta converts the wire metadata to the public [Meta] type.
func (e envelope) meta() Meta {
	return Meta{
		Timestamp:  *e.Meta.Timestamp,
		Expiration: *e.Meta.Expiration,
	}
}
