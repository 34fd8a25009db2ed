package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AB12CD", "AB12CD"},
		{" ab12Cd ", "AB12CD"},
		{"ab 12 cd", "AB12CD"},
		{"\tab12cd\n", "AB12CD"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeCode(tc.in))
		})
	}
}

func TestIsValidToken(t *testing.T) {
	assert.True(t, IsValidToken("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"))
	assert.False(t, IsValidToken("0123456789ABCDEF0123456789abcdef0123456789abcdef0123456789abcdef"))
	assert.False(t, IsValidToken("short"))
	assert.False(t, IsValidToken(""))
}

func TestIsValidGuestID(t *testing.T) {
	assert.True(t, IsValidGuestID("guest_123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, IsValidGuestID("123e4567-e89b-12d3-a456-426614174000"))
	assert.False(t, IsValidGuestID("guest_X"))
}
