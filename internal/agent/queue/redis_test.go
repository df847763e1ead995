package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/validator"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	q, err := NewRedisQueue(context.Background(), &redis.Options{Addr: s.Addr()}, "syncd:test")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, s
}

func cellUpdate(itemID, value string) offline.QueuedAction {
	return offline.QueuedAction{
		Kind:     offline.KindCellUpdate,
		ItemID:   itemID,
		ColumnID: "col-status",
		Value:    json.RawMessage(value),
	}
}

func TestRedisQueue_EnqueueStampsAction(t *testing.T) {
	q, _ := setupTestQueue(t)
	fixed := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	stored, err := q.Enqueue(context.Background(), cellUpdate("item-1", `"submitted"`))
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, fixed, stored.QueuedAt)

	size, err := q.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestRedisQueue_RejectsInvalidAction(t *testing.T) {
	q, _ := setupTestQueue(t)

	_, err := q.Enqueue(context.Background(), cellUpdate("", `"submitted"`))
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	size, err := q.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRedisQueue_PeekAndDropAreFIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	for _, item := range []string{"item-1", "item-2", "item-3"} {
		_, err := q.Enqueue(ctx, cellUpdate(item, `"submitted"`))
		require.NoError(t, err)
	}

	head, err := q.Peek(ctx, 2)
	require.NoError(t, err)
	require.Len(t, head, 2)
	assert.Equal(t, "item-1", head[0].ItemID)
	assert.Equal(t, "item-2", head[1].ItemID)

	// Peek does not consume.
	size, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	require.NoError(t, q.Drop(ctx, 2))
	rest, err := q.Peek(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "item-3", rest[0].ItemID)

	require.NoError(t, q.Drop(ctx, 5))
	size, err = q.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRedisQueue_PeekEmpty(t *testing.T) {
	q, _ := setupTestQueue(t)

	actions, err := q.Peek(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, actions)

	actions, err = q.Peek(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestRedisQueue_SizeFailsWhenRedisDown(t *testing.T) {
	q, s := setupTestQueue(t)
	s.Close()

	_, err := q.Size(context.Background())
	assert.Error(t, err)
}
