package social

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// verifierLength is fixed by the flow: the verifier is stripped to
// [A-Za-z0-9] and cut to exactly 43 characters before it is cookied.
const verifierLength = 43

// GenerateCodeVerifier generates a PKCE code verifier: 32 bytes of CSPRNG
// material, base64url-encoded, non-alphanumerics stripped, drawing more
// randomness until 43 characters remain.
func GenerateCodeVerifier() (string, error) {
	var sb strings.Builder

	for sb.Len() < verifierLength {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate code verifier: %w", err)
		}

		for _, c := range base64.RawURLEncoding.EncodeToString(b) {
			if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
				sb.WriteRune(c)
			}
		}
	}

	return sb.String()[:verifierLength], nil
}

// GenerateCodeChallenge generates the S256 code challenge for a verifier:
// SHA-256 over the verifier bytes, base64url without padding.
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
