package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueLengthAndAlphabet(t *testing.T) {
	tok, err := Issue()
	require.NoError(t, err)

	// 16字节 base64url 无填充编码后为22个字符
	assert.Len(t, tok, 22)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for _, r := range tok {
		assert.True(t, strings.ContainsRune(alphabet, r), "非URL安全字符: %q", r)
	}
}

func TestIssueUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := Issue()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "令牌重复: %s", tok)
		seen[tok] = struct{}{}
	}
}
