// SPDX-License-Identifier: MIT

package main

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitech/convogate/internal/audit"
	"github.com/stitech/convogate/internal/config"
	"github.com/stitech/convogate/internal/session"
)

func TestBuildStoreDefaultsToMemory(t *testing.T) {
	store, err := buildStore(config.AppConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok := store.(*session.MemoryStore)
	assert.True(t, ok, "expected in-memory store without redis config")
}

func TestBuildSinkDefaultsToMemory(t *testing.T) {
	sink, err := buildSink(config.AppConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	_, ok := sink.(*audit.MemorySink)
	assert.True(t, ok, "expected in-memory sink without a database path")
}

func TestBuildSinkCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "flow-audit.db")
	sink, err := buildSink(config.AppConfig{AuditDBPath: path}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	_, ok := sink.(*audit.SqliteSink)
	assert.True(t, ok)
}
