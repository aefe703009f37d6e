package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsEnvironment(t *testing.T) {
	s := New("")

	assert.Equal(t, DefaultEnvironment, s.Environment())
	assert.Equal(t, "api.mypurecloud.com", s.APIHost())
	assert.Equal(t, "https://login.mypurecloud.com", s.LoginHost())
}

func TestSetEnvironmentRecomputesHostsTogether(t *testing.T) {
	tests := []string{
		"mypurecloud.ie",
		"inindca.com",
		"ininsca.com",
		"mypurecloud.com.au",
		"example.test:8443",
	}

	s := New("")
	for _, env := range tests {
		t.Run(env, func(t *testing.T) {
			s.SetEnvironment(env)

			api, login := s.Hosts()
			assert.Equal(t, env, s.Environment())
			assert.Equal(t, "api."+env, api)
			assert.Equal(t, "https://login."+env, login)
		})
	}
}

func TestHostsNeverMismatchedUnderConcurrency(t *testing.T) {
	s := New("")
	envs := []string{"mypurecloud.ie", "inindca.com"}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetEnvironment(envs[i%2])
		}(i)
	}

	for range 200 {
		api, login := s.Hosts()
		require.Equal(t, api[len("api."):], login[len("https://login."):])
	}
	wg.Wait()
}

func TestTokenAccessors(t *testing.T) {
	s := New("")

	assert.False(t, s.HasToken())
	assert.Empty(t, s.Token())

	s.SetToken("abc")
	assert.True(t, s.HasToken())
	assert.Equal(t, "abc", s.Token())

	s.SetToken("")
	assert.False(t, s.HasToken())
}
