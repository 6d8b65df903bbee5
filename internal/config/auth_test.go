package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns default when env not set",
			key:          "TEST_KEY_1",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
		{
			name:         "returns env value when set",
			key:          "TEST_KEY_2",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			assert.Equal(t, tt.want, GetEnvOrDefault(tt.key, tt.defaultValue))
		})
	}
}

func TestJWTSecretManagement(t *testing.T) {
	originalSecret := GetJWTSecret()
	newSecret := []byte("test-secret")

	restore := SetJWTSecret(newSecret)
	assert.Equal(t, newSecret, GetJWTSecret())

	restore()
	assert.Equal(t, originalSecret, GetJWTSecret())
}

func TestGetSessionTokenTTL(t *testing.T) {
	assert.Equal(t, time.Hour, GetSessionTokenTTL())

	t.Setenv("SESSION_TOKEN_TTL", "15m")
	assert.Equal(t, 15*time.Minute, GetSessionTokenTTL())

	t.Setenv("SESSION_TOKEN_TTL", "soon")
	assert.Equal(t, time.Hour, GetSessionTokenTTL())
}
