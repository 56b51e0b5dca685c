// Package logging provides typed slog.Attr constructors used throughout
// the module, so call sites log structured fields instead of ad-hoc
// fmt.Sprintf strings.
package logging

import "log/slog"

// enum: used to get type safety on keys when logging
const (
	keyPeer       = "peer"
	keyField      = "field"
	keyOffset     = "offset"
	keySize       = "size"
	keyOpcode     = "opcode"
	keyErr        = "err"
	keyType       = "type"
	keyReconnect  = "reconnect"
	keyRetryNum   = "retryNum"
	keyMaxRetries = "maxRetries"
	keyNumFailed  = "numFailed"
	keyPredicate  = "predicate"
	keyKind       = "kind"
)

// Peer returns a structured attribute identifying a peer by id.
func Peer(id uint32) slog.Attr { return slog.Uint64(keyPeer, uint64(id)) }

// Field returns a structured attribute naming an SST field.
func Field(name string) slog.Attr { return slog.String(keyField, name) }

// Offset returns a structured attribute for a byte offset.
func Offset(off uint64) slog.Attr { return slog.Uint64(keyOffset, off) }

// Size returns a structured attribute for a byte size.
func Size(n uint64) slog.Attr { return slog.Uint64(keySize, n) }

// Opcode returns a structured attribute for an RPC header opcode.
func Opcode(op uint64) slog.Attr { return slog.Uint64(keyOpcode, op) }

// Err returns a structured attribute for an error, or a no-op attribute if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(keyErr, err.Error())
}

// Type returns a structured attribute naming the logging subsystem/component.
func Type(t string) slog.Attr { return slog.String(keyType, t) }

// Reconnect returns a structured attribute reporting whether a reconnect will be attempted.
func Reconnect(b bool) slog.Attr { return slog.Bool(keyReconnect, b) }

// RetryNum returns a structured attribute for the current retry count.
func RetryNum(n float64) slog.Attr { return slog.Float64(keyRetryNum, n) }

// MaxRetries returns a structured attribute for the configured retry ceiling.
func MaxRetries(n int) slog.Attr { return slog.Int(keyMaxRetries, n) }

// NumFailed returns a structured attribute for the number of failed attempts so far.
func NumFailed(n int) slog.Attr { return slog.Int(keyNumFailed, n) }

// Predicate returns a structured attribute naming a registered predicate.
func Predicate(name string) slog.Attr { return slog.String(keyPredicate, name) }

// Kind returns a structured attribute naming a predicate's kind (one-time/recurring).
func Kind(k string) slog.Attr { return slog.String(keyKind, k) }
