package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("lead not found"), KindNotFound},
		{"conflict", Conflict("email already in use"), KindConflict},
		{"wrapped keeps kind", fmt.Errorf("loading lead: %w", NotFound("lead not found")), KindNotFound},
		{"plain error is internal", assert.AnError, KindInternal},
		{"nil is internal", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := Forbidden("access denied")

	assert.True(t, Is(err, KindForbidden))
	assert.False(t, Is(err, KindNotFound))
	assert.False(t, Is(nil, KindInternal))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated("invalid token"), http.StatusUnauthorized},
		{Forbidden("access denied"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		// conflicts surface as 400, not 409; clients treat duplicate
		// registration like any other rejected input
		{Conflict("duplicate"), http.StatusBadRequest},
		{InvalidInput("bad payload"), http.StatusBadRequest},
		{InvalidOperation("lead already converted"), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}

func TestFormatting(t *testing.T) {
	err := InvalidInput("invalid lead status: %s", "Bogus")
	assert.Equal(t, "invalid lead status: Bogus", err.Error())
}

func TestInternalUnwrap(t *testing.T) {
	err := Internal(assert.AnError, "unexpected failure")
	assert.Equal(t, assert.AnError, err.Unwrap())
	assert.Equal(t, KindInternal, KindOf(err))
}
