package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	ctx := WithEntity(WithStage(WithRunID(context.Background(), "run-1"), "FORECASTING"), "SKU-9")
	l.Warnf(ctx, "stage failed: %s", "timeout")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, "stage failed: timeout", e.Message)
		fields := e.ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "FORECASTING", fields["stage"])
		assert.Equal(t, "SKU-9", fields["entity_id"])
	}
	assert.Equal(t, "run-1", RunID(ctx))
}

func TestNopDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Infof(context.Background(), "hello %d", 1)
	assert.NoError(t, l.Sync())
}
