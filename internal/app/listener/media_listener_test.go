package listener

import (
	"bytes"
	"errors"
	"testing"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaListener(t *testing.T) {
	var buf bytes.Buffer
	logging.SetupWithWriter(false, &buf)

	reg := prometheus.NewRegistry()
	bus := event.NewEventBus()
	l, err := NewMediaListener(bus, reg)
	require.NoError(t, err)

	bus.Publish(event.MediaOrphanFailed, event.OrphanFailedPayload{
		Key:     "cms-assets/cover/p1/a.jpg",
		OwnerID: "p1",
		Field:   "cover",
		Err:     errors.New("timeout"),
	})
	bus.Publish(event.DocumentDeleted, event.DocumentDeletedPayload{Collection: "posts", ID: "p1", Images: 3})
	bus.Publish(event.DocumentDeleted, event.DocumentDeletedPayload{Collection: "posts", ID: "p2", Images: 1})
	bus.Publish(event.DocumentDeleted, "错误的负载")
	bus.Shutdown()

	assert.Equal(t, MediaStats{OrphanFailures: 1, DeletedDocuments: 2, ReleasedImages: 4}, l.Stats())
	assert.Contains(t, buf.String(), "孤儿对象删除失败")
	assert.Contains(t, buf.String(), `"cause":"timeout"`)
	assert.Contains(t, buf.String(), "负载类型不正确")

	assert.Equal(t, float64(2), testutil.ToFloat64(l.deletedDocumentsTotal.WithLabelValues("posts")))
	assert.Equal(t, float64(4), testutil.ToFloat64(l.releasedImagesTotal))

	assert.Equal(t, float64(1), testutil.ToFloat64(l.orphanFailuresTotal.WithLabelValues("cover")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestNewMediaListener_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	bus := event.NewEventBus()
	t.Cleanup(bus.Shutdown)

	_, err := NewMediaListener(bus, reg)
	require.NoError(t, err)
	_, err = NewMediaListener(bus, reg)
	assert.Error(t, err)

	_, err = NewMediaListener(bus, nil)
	assert.NoError(t, err)
}
