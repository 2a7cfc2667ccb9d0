package drafterr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
		code int
	}{
		{"wrapped not found", fmt.Errorf("%w: session %q", ErrNotFound, "ABC123"), KindNotFound, http.StatusNotFound},
		{"turn mismatch", fmt.Errorf("%w: red ban", ErrTurnMismatch), KindTurnMismatch, http.StatusConflict},
		{"duplicate", ErrDuplicateSelection, KindDuplicateSelection, http.StatusConflict},
		{"unauthorized", fmt.Errorf("start: %w", ErrUnauthorized), KindUnauthorized, http.StatusForbidden},
		{"bad input", ErrInvalidInput, KindInvalidInput, http.StatusBadRequest},
		{"unknown", errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
			assert.Equal(t, tc.code, HTTPStatus(tc.err))
		})
	}
}
