// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogBuiltins(t *testing.T) {
	c, err := NewCatalog("", "es-AR", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.NotEmpty(t, c.Reply("es-AR", MsgGreeting))
	assert.NotEmpty(t, c.Reply("en", MsgGreeting))
	assert.NotEqual(t, c.Reply("es-AR", MsgGreeting), c.Reply("en", MsgGreeting))
}

func TestCatalogFallbacks(t *testing.T) {
	c, err := NewCatalog("", "es-AR", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	// Unknown language falls back to the default language.
	assert.Equal(t, c.Reply("es-AR", MsgAskName), c.Reply("fr", MsgAskName))
	// Unknown key falls back to the key itself.
	assert.Equal(t, "no_such_key", c.Reply("es-AR", "no_such_key"))
}

func TestCatalogUnknownDefaultLanguage(t *testing.T) {
	_, err := NewCatalog("", "klingon", zerolog.Nop())
	require.Error(t, err)
}

func TestCatalogOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("en:\n  greeting: \"Howdy!\"\n"), 0o644))

	c, err := NewCatalog(path, "en", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, "Howdy!", c.Reply("en", MsgGreeting))
	// Untouched keys keep their built-in text.
	assert.NotEmpty(t, c.Reply("en", MsgAskName))
}

func TestCatalogHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("en:\n  greeting: \"v1\"\n"), 0o644))

	c, err := NewCatalog(path, "en", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	require.NoError(t, c.Watch(path))

	require.Equal(t, "v1", c.Reply("en", MsgGreeting))

	require.NoError(t, os.WriteFile(path, []byte("en:\n  greeting: \"v2\"\n"), 0o644))

	require.Eventually(t, func() bool {
		return c.Reply("en", MsgGreeting) == "v2"
	}, 2*time.Second, 20*time.Millisecond, "catalog should reload on file change")
}

func TestReplyf(t *testing.T) {
	c, err := NewCatalog("", "en", zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	got := c.Replyf("en", MsgAskNeed, "Heber")
	assert.Contains(t, got, "Heber")
}
