package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHostAddress(t *testing.T) {
	tests := []struct {
		address string
		valid   bool
	}{
		{"192.168.1.20", true},
		{"192.168.1.20:47989", true},
		{"gaming-pc", true},
		{"gaming-pc.local", true},
		{"gaming-pc.local:47989", true},
		{"fe80::1", true},
		{"[fe80::1]:47989", true},
		{"", false},
		{"gaming pc", false},
		{"-bad.example", false},
		{"host:0", false},
		{"host:99999", false},
		{"host\x00", false},
		{strings.Repeat("a", 300), false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := ValidateHostAddress(tt.address)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateAppID(t *testing.T) {
	assert.NoError(t, ValidateAppID(881448767))
	assert.Error(t, ValidateAppID(0))
	assert.Error(t, ValidateAppID(-1))
}

func TestValidateString(t *testing.T) {
	assert.NoError(t, ValidateString("", "device", 1, 10, false))
	assert.Error(t, ValidateString("", "device", 1, 10, true))
	assert.Error(t, ValidateString("toolongvalue", "device", 1, 10, true))
}
