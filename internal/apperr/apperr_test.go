package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   error
		status int
	}{
		{"not found", NotFound("order not found"), ErrNotFound, http.StatusNotFound},
		{"unauthorized", Unauthorized("not a party"), ErrUnauthorized, http.StatusForbidden},
		{"transition", InvalidTransition("pending -> completed"), ErrInvalidTransition, http.StatusConflict},
		{"argument", InvalidArgument("empty content"), ErrInvalidArgument, http.StatusBadRequest},
		{"storage", Storage("insert message", errors.New("conn reset")), ErrStorage, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.kind)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestStorageKeepsCauseButHidesIt(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Storage("insert order", cause)

	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDelivery)
	assert.Equal(t, "internal error", PublicMessage(err))
	assert.Nil(t, Storage("noop", nil))
}

func TestPublicMessageUsesKindMessage(t *testing.T) {
	assert.Equal(t, "content must not be empty", PublicMessage(InvalidArgument("content must not be empty")))
	assert.Equal(t, "not found", PublicMessage(ErrNotFound))
}
