package validx_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/aussiebroadwan/askbar/pkg/validx"
	"github.com/stretchr/testify/require"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ada", true},
		{"ada_lovelace_1815", true},
		{"ab", false},
		{strings.Repeat("a", 24), true},
		{strings.Repeat("a", 25), false},
		{"ada lovelace", false},
		{"ada-lovelace", false},
		{"ädä", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, validx.ValidUsername(tt.in), "input %q", tt.in)
	}
}

func TestMessage(t *testing.T) {
	type form struct {
		Email     string   `json:"email" validate:"required,email"`
		Username  string   `json:"username" validate:"username"`
		Password  string   `json:"password" validate:"min=8,max=72"`
		Interests []string `json:"interests" validate:"max=5"`
	}
	v := validx.New()

	tests := []struct {
		name string
		in   form
		want string
	}{
		{"missing email", form{Username: "ada", Password: "longenough"}, "email is required"},
		{"bad email", form{Email: "nope", Username: "ada", Password: "longenough"}, "invalid email format"},
		{"bad username", form{Email: "a@b.co", Username: "a!", Password: "longenough"}, "username must be 3-24 characters"},
		{"short password", form{Email: "a@b.co", Username: "ada", Password: "short"}, "password must be at least 8 characters"},
		{"too many interests", form{Email: "a@b.co", Username: "ada", Password: "longenough", Interests: []string{"a", "b", "c", "d", "e", "f"}}, "interests allows at most 5 entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			require.Error(t, err)
			require.Contains(t, validx.Message(err), tt.want)
		})
	}

	require.NoError(t, v.Struct(form{Email: "a@b.co", Username: "ada", Password: "longenough"}))
	require.Equal(t, "boom", validx.Message(errors.New("boom")))
	require.Empty(t, validx.Message(nil))
}
