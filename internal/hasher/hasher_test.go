package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Algorithm:  "sha256",
		LocalSalt:  "local-salt",
		Iterations: 1000,
		KeyLen:     32,
	}
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing algorithm", func(c *Config) { c.Algorithm = "" }},
		{"unsupported algorithm", func(c *Config) { c.Algorithm = "md5" }},
		{"missing local salt", func(c *Config) { c.LocalSalt = "" }},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
		{"negative iterations", func(c *Config) { c.Iterations = -1 }},
		{"zero key length", func(c *Config) { c.KeyLen = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestHashDeterminism(t *testing.T) {
	h, err := New(validConfig())
	require.NoError(t, err)

	first := h.Hash("secret123")
	second := h.Hash("secret123")
	assert.Equal(t, first, second)

	other := h.Hash("secret124")
	assert.NotEqual(t, first, other)
}

func TestHashNeverStoresPlaintext(t *testing.T) {
	h, err := New(validConfig())
	require.NoError(t, err)

	out := h.Hash("secret123")
	assert.NotContains(t, out, "secret123")
}

func TestHashOutputShape(t *testing.T) {
	h, err := New(validConfig())
	require.NoError(t, err)

	// keyLen bytes hex-encoded plus a sha256 remote salt (64 hex chars).
	out := h.Hash("secret123")
	assert.Len(t, out, 32*2+64)
}

func TestHashDependsOnConfiguration(t *testing.T) {
	base, err := New(validConfig())
	require.NoError(t, err)

	saltCfg := validConfig()
	saltCfg.LocalSalt = "another-salt"
	salted, err := New(saltCfg)
	require.NoError(t, err)

	iterCfg := validConfig()
	iterCfg.Iterations = 2000
	iterated, err := New(iterCfg)
	require.NoError(t, err)

	assert.NotEqual(t, base.Hash("pw"), salted.Hash("pw"))
	assert.NotEqual(t, base.Hash("pw"), iterated.Hash("pw"))
}

func TestHashSha512(t *testing.T) {
	cfg := validConfig()
	cfg.Algorithm = "sha512"
	h, err := New(cfg)
	require.NoError(t, err)

	out := h.Hash("secret123")
	// sha512 remote salt is 128 hex chars.
	assert.Len(t, out, 32*2+128)
	assert.Equal(t, out, h.Hash("secret123"))
}
