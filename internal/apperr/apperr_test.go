package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindForbidden, KindOf(Forbidden("nope")))
	assert.Equal(t, KindConflict, KindOf(Conflict("taken")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestWithMeta(t *testing.T) {
	err := Unauthorised("invitation was issued to a different email").
		WithMeta("email", "b@x.com")

	assert.Equal(t, "b@x.com", err.Meta["email"])
	assert.Equal(t, KindUnauthorised, err.Kind)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
