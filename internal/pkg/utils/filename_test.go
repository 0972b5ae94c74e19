package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
)

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"/etc/passwd", "passwd"},
		{"../../secret.txt", "secret.txt"},
		{"dir/sub/name.tar.gz", "name.tar.gz"},
		{`C:\Users\a\notes.txt`, "notes.txt"},
		{"with space.png", "with space.png"},
	}
	for _, tc := range cases {
		got, err := SanitizeFileName(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestSanitizeFileNameRejectsEmptyAndTraversal(t *testing.T) {
	for _, in := range []string{"", ".", "..", "/", "a/..", "bad\x00name"} {
		_, err := SanitizeFileName(in)
		assert.ErrorIs(t, err, xerr.ErrFileNameInvalid, "input %q", in)
	}
}
