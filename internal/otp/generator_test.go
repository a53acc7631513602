package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Length(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := GenerateCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "expected digit, got %q", c)
		}
	}
}

func TestGenerateCode_InvalidLength(t *testing.T) {
	_, err := GenerateCode(0)
	assert.Error(t, err)
}

func TestGenerateCode_LeadingZerosPermitted(t *testing.T) {
	// With 500 draws of a 2-digit code, a leading zero is overwhelmingly
	// likely to appear if zeros are allowed in the first position.
	seen := false
	for i := 0; i < 500; i++ {
		code, err := GenerateCode(2)
		require.NoError(t, err)
		if code[0] == '0' {
			seen = true
			break
		}
	}
	assert.True(t, seen, "no leading zero in 500 samples")
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"09123456789", true},
		{"09000000000", true},
		{"9123456789", false},
		{"0912345678", false},
		{"091234567890", false},
		{"0912345678a", false},
		{"+989123456789", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidPhone(tt.phone), "phone %q", tt.phone)
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("123456"))
	assert.True(t, ValidCode("000000"))
	assert.False(t, ValidCode("12345a"))
	assert.False(t, ValidCode("123"))
	assert.False(t, ValidCode(""))
}
