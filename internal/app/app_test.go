package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcvisitor/internal/config"
	"dcvisitor/internal/logging"
	"dcvisitor/internal/visitor"
)

func TestOpenMemoryBackend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.App{
		DatabaseURL:    "sqlite://" + filepath.Join(t.TempDir(), "app.db"),
		QueueBackend:   QueueBackendMemory,
		StatsCacheTTL:  time.Minute,
		ExportTimezone: "UTC",
	}
	d, err := Open(ctx, cfg, logging.Discard(), 0)
	require.NoError(t, err)
	defer d.Close()
	assert.Nil(t, d.Redis)

	_, err = d.Visitors.InsertBatch(ctx, []visitor.NewRecord{{Name: "A", NationalID: "N", Phone: "1"}})
	require.NoError(t, err)

	msgs, err := d.Queue.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, visitor.EventChanged, msg.Type)
		h, ok := d.Consumers()[msg.Type]
		require.True(t, ok)
		assert.NoError(t, h(ctx, msg))
	case <-ctx.Done():
		t.Fatal("no change event published")
	}
}
