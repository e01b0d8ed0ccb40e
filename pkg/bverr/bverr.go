// Package bverr defines the error kinds surfaced by the bandvault core.
package bverr

import "errors"

// Kind identifies a class of error so callers can branch with errors.Is
// without depending on message text.
type Kind struct {
	name string
}

func (k Kind) Error() string { return k.name }

var (
	// NotFound is an explicit absence, recoverable by the caller.
	NotFound = Kind{"not found"}
	// Storage is a backend-side failure; transient, caller may retry.
	Storage = Kind{"storage error"}
	// KeyManagement flags a missing or malformed key.
	KeyManagement = Kind{"key management error"}
	// Decrypt flags an AEAD tag failure. Do not retry; surface as corruption.
	Decrypt = Kind{"decrypt error"}
	// Truncated flags a ciphertext blob shorter than its minimum size.
	Truncated = Kind{"truncated ciphertext"}
	// Database is a relational or constraint error.
	Database = Kind{"database error"}
	// SignatureVerificationFailed flags a cryptographic signature mismatch.
	SignatureVerificationFailed = Kind{"signature verification failed"}
	// InvalidPubkey flags a public key of the wrong length or encoding.
	InvalidPubkey = Kind{"invalid public key"}
	// InvalidSignature flags a signature of the wrong length or encoding.
	InvalidSignature = Kind{"invalid signature"}
	// MembershipViolation flags an author not authorised at the referenced timestamp.
	MembershipViolation = Kind{"membership violation"}
)

// wrapped pairs a Kind with context, matching the teacher's fmt.Errorf("%w")
// wrapping style rather than a generic errors-package stack trace.
type wrapped struct {
	kind Kind
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.err != nil {
		return w.kind.name + ": " + w.msg + ": " + w.err.Error()
	}
	return w.kind.name + ": " + w.msg
}

func (w *wrapped) Unwrap() error { return w.err }

func (w *wrapped) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == w.kind
}

// New returns an error of the given kind with a message.
func New(kind Kind, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

// Wrap returns an error of the given kind, wrapping err and attaching msg as
// context. errors.Is(result, kind) and errors.Is(result, err) both succeed.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, msg: msg, err: err}
}

// Is reports whether err is of the given kind, looking through wraps.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
