package auth

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenProviderMethod(t *testing.T) {
	tests := []struct {
		name      string
		provider  *TokenProvider
		remoteURL string
		wantAuth  bool
		wantError bool
	}{
		{
			name:      "https remote gets token",
			provider:  NewTokenProvider("", "secret"),
			remoteURL: "https://github.com/OpenVoiceOS/ovos-core.git",
			wantAuth:  true,
		},
		{
			name:      "non https remote gets nothing",
			provider:  NewTokenProvider("", "secret"),
			remoteURL: "file:///srv/git/repo.git",
		},
		{
			name:      "empty token gets nothing",
			provider:  NewTokenProvider("", ""),
			remoteURL: "https://github.com/org/repo.git",
		},
		{
			name:      "wildcard host allowed",
			provider:  NewTokenProvider("", "secret").WithAllowedHosts("*.example.com"),
			remoteURL: "https://git.example.com/org/repo.git",
			wantAuth:  true,
		},
		{
			name:      "host not allowed",
			provider:  NewTokenProvider("", "secret").WithAllowedHosts("github.com"),
			remoteURL: "https://gitlab.com/org/repo.git",
		},
		{
			name:      "invalid url",
			provider:  NewTokenProvider("", "secret"),
			remoteURL: "://nope",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, err := tt.provider.Method(tt.remoteURL)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantAuth {
				require.NotNil(t, method)
			} else {
				assert.Nil(t, method)
			}
		})
	}
}

func TestTokenProviderDefaultUser(t *testing.T) {
	method, err := NewTokenProvider("", "secret").Method("https://github.com/a/b.git")
	require.NoError(t, err)

	basic, ok := method.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, DefaultTokenUser, basic.Username)
	assert.Equal(t, "secret", basic.Password)
}
