// Package drafterr defines the rejection kinds shared by every draft component.
// Errors returned by the engine, the position table and the lobby wrap exactly
// one of the sentinels below so callers can branch with errors.Is.
package drafterr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPhase       = errors.New("invalid phase")
	ErrTurnMismatch       = errors.New("turn mismatch")
	ErrDuplicateSelection = errors.New("duplicate selection")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidPhase       Kind = "invalid_phase"
	KindTurnMismatch       Kind = "turn_mismatch"
	KindDuplicateSelection Kind = "duplicate_selection"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidInput       Kind = "invalid_input"
	KindInternal           Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
	code int
}{
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrInvalidPhase, KindInvalidPhase, http.StatusConflict},
	{ErrTurnMismatch, KindTurnMismatch, http.StatusConflict},
	{ErrDuplicateSelection, KindDuplicateSelection, http.StatusConflict},
	{ErrUnauthorized, KindUnauthorized, http.StatusForbidden},
	{ErrInvalidInput, KindInvalidInput, http.StatusBadRequest},
}

// KindOf reports which rejection kind err wraps, or KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return http.StatusInternalServerError
}
