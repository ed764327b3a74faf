package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name          string
		password      string
		shouldFail    bool
		errorContains string
	}{
		{name: "letters and digits", password: "board2024x"},
		{name: "with symbols", password: "My-B0ard!"},
		{name: "unicode letters", password: "게시판비밀번호1"},
		{name: "too short", password: "ab1", shouldFail: true, errorContains: "at least 8"},
		{name: "no digit", password: "onlyletters", shouldFail: true, errorContains: "digit"},
		{name: "no letter", password: "1234567890", shouldFail: true, errorContains: "letter"},
		{name: "common password", password: "Password123", shouldFail: true, errorContains: "too common"},
		{name: "too long", password: strings.Repeat("a1", 40), shouldFail: true, errorContains: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.shouldFail {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var pve *PasswordValidationError
			assert.True(t, errors.As(err, &pve))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestHashAndComparePassword(t *testing.T) {
	old := BcryptCost
	BcryptCost = bcrypt.MinCost
	t.Cleanup(func() { BcryptCost = old })

	password := "board2024x"

	hash, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	assert.NoError(t, ComparePassword(hash, password))
	assert.Error(t, ComparePassword(hash, "board2024y"))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}
