package courses

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURLIdentifier(t *testing.T) {
	cases := []struct {
		in        string
		want      string
		isNumeric bool
	}{
		{"42", "42", true},
		{" 42 ", "42", true},
		{"intro-to-calculus", "intro-to-calculus", false},
		{"", "", false},
		{"   ", "", false},
		{"42abc", "42abc", false},
	}
	for _, tc := range cases {
		got, numeric := URLIdentifier(tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
		require.Equal(t, tc.isNumeric, numeric, "input %q", tc.in)
	}
}
