package ai

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig        Kind = "config"
	KindTimeout       Kind = "timeout"
	KindNetwork       Kind = "network"
	KindHTTP          Kind = "http"
	KindMalformed     Kind = "malformed"
	KindContentFilter Kind = "content_filter"
	KindCanceled      Kind = "canceled"
)

// Error is every failure the gateway reports. Status and Detail are set for
// KindHTTP (upstream status + body) and carry diagnostics for KindMalformed.
// KindCanceled means the caller's context ended before a reply arrived.
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetwork
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
