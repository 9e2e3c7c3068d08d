// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Spans from a noop provider must be safe to use.
	_, span := Tracer("test").Start(context.Background(), "op")
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestUnsupportedExporterRejected(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "convogate",
		ExporterType: "udp",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestTurnAttributes(t *testing.T) {
	attrs := TurnAttributes("s1", "ASK_NAME", "ASK_NEED", "accepted", 3)
	require.Len(t, attrs, 5)
	assert.Equal(t, SessionIDKey, string(attrs[0].Key))
	assert.Equal(t, "s1", attrs[0].Value.AsString())
	assert.Equal(t, int64(3), attrs[4].Value.AsInt64())
}
