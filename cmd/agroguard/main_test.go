package main

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Setenv("AGROGUARD_DATA_DIR", t.TempDir())
	t.Setenv("AGROGUARD_CONFIG", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")
	t.Setenv("AI_PROVIDER", "ollama")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBIT_URL", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRegisterAndWhoami(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "register", "Sunny", "Acres", "--plan", "Pro")
	require.NoError(t, err, out)
	key := regexp.MustCompile(`AG-[A-Z0-9]{4}-[A-Z0-9]{4}`).FindString(out)
	require.NotEmpty(t, key, out)

	out, err = run(t, "whoami")
	require.NoError(t, err, out)
	assert.Contains(t, out, key)
	assert.Contains(t, out, "Pro (active)")

	out, err = run(t, "history")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No detections yet.")

	out, err = run(t, "profile", "show")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Sunny Acres")
}

func TestCommandsNeedSession(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "insights")
	require.Error(t, err)
	assert.Contains(t, out, "Sign in first")
}

func TestTheme(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	out, err = run(t, "theme", "dark")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out)

	_, err = run(t, "theme", "sepia")
	assert.Error(t, err)
}

func TestCatalogCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "catalog", "tomato")
	require.NoError(t, err)
	assert.Contains(t, out, "Early Blight")
	assert.NotContains(t, out, "Common Rust")

	out, err = run(t, "catalog", "tomato", "early blight")
	require.NoError(t, err)
	assert.Contains(t, out, "Alternaria solani")
}
