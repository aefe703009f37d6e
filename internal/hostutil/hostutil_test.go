package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", ""},
		{"api.mypurecloud.com", "https://api.mypurecloud.com"},
		{"api.mypurecloud.com/", "https://api.mypurecloud.com"},
		{"localhost:8085", "http://localhost:8085"},
		{"api.localhost:3000", "http://api.localhost:3000"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000"},
		{"[::1]:9000", "http://[::1]:9000"},
		{"http://127.0.0.1:54321", "http://127.0.0.1:54321"},
		{"https://api.inindca.com", "https://api.inindca.com"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.host))
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"localhost:8085", true},
		{"dev.localhost", true},
		{"127.0.0.1", true},
		{"127.0.0.1:80", true},
		{"[::1]", true},
		{"[::1]:8080", true},
		{"api.mypurecloud.com", false},
		{"localhost.example.com", false},
		{"[::2]:80", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocalhost(tt.host))
		})
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "https://api.mypurecloud.ie/api/v1/users/me", Join("api.mypurecloud.ie", "/api/v1/users/me"))
	assert.Equal(t, "https://api.mypurecloud.ie/api/v1/users/me", Join("api.mypurecloud.ie", "api/v1/users/me"))
	assert.Equal(t, "http://127.0.0.1:1/x", Join("api.mypurecloud.ie", "http://127.0.0.1:1/x"))
}
