package redisx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sudo-init-do/skillbridge/internal/redisx"
)

func TestIdemOrderPlaceKeyIsScopedByBuyer(t *testing.T) {
	a := redisx.IdemOrderPlaceKey("buyer-1", "abc")
	b := redisx.IdemOrderPlaceKey("buyer-2", "abc")
	assert.Equal(t, "idem:order:place:buyer-1:abc", a)
	assert.NotEqual(t, a, b)
}
