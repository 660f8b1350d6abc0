package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Test de la comparaison négative (mauvais mot de passe)
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("user-42", time.Hour)
	req.NoError(err)

	userID, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("user-42", userID)
}

func TestTokenRejection(t *testing.T) {
	req := require.New(t)

	_, err := ValidateToken("not-a-token")
	req.Error(err)

	expired, err := GenerateToken("user-42", -time.Minute)
	req.NoError(err)
	_, err = ValidateToken(expired)
	req.Error(err)

	// Tampered payload must fail the signature check.
	token, err := GenerateToken("user-42", time.Hour)
	req.NoError(err)
	parts := strings.Split(token, ".")
	req.Len(parts, 3)
	_, err = ValidateToken(parts[0] + ".tampered." + parts[2])
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"Alice", "alice42", "ComplexPass123!"}, false},
		{"Empty name allowed", RegisterRequest{"", "alice42", "ComplexPass123!"}, false},
		{"Handle too short", RegisterRequest{"Alice", "ab", "ComplexPass123!"}, true},
		{"Handle not alphanumeric", RegisterRequest{"Alice", "al ice!", "ComplexPass123!"}, true},
		{"Missing handle", RegisterRequest{"Alice", "", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"Alice", "alice42", "Short1!"}, true},
		{"Password too long (edge case)", RegisterRequest{"Alice", "alice42", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestLoginValidation(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateLogin(LoginRequest{Handle: "alice42", Password: "whatever"}))
	req.Error(ValidateLogin(LoginRequest{Handle: "", Password: "whatever"}))
	req.Error(ValidateLogin(LoginRequest{Handle: "alice42", Password: ""}))
}

// BenchmarkHashPassword permet de mesurer l'impact CPU/RAM (Crucial pour K8s)
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
