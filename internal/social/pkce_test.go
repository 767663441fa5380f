package social

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)

	assert.Len(t, verifier, 43)
	for _, c := range verifier {
		alnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		assert.True(t, alnum, "verifier contains non-alphanumeric rune %q", c)
	}
}

func TestGenerateCodeVerifierUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		verifier, err := GenerateCodeVerifier()
		require.NoError(t, err)
		assert.False(t, seen[verifier], "verifier repeated")
		seen[verifier] = true
	}
}

func TestGenerateCodeChallenge(t *testing.T) {
	// RFC 7636 appendix B test vector
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", GenerateCodeChallenge(verifier))
}

func TestGenerateCodeChallengeDeterministic(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)

	assert.Equal(t, GenerateCodeChallenge(verifier), GenerateCodeChallenge(verifier))
	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, GenerateCodeChallenge(verifier), GenerateCodeChallenge(other))
}
