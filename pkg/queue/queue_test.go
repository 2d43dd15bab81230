package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.EnqueueReport(ctx, ReportPayload{Date: "2024-03-04", RequestedBy: "root"})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobTypeDailyReport, job.Type)

	var p ReportPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "2024-03-04", p.Date)
}

func TestDequeue_InvalidEntry(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.RPush(QueueReports, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), time.Second)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetry_MovesToDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	job := &Job{ID: "j1", Type: JobTypeDailyReport}

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		n, err := q.Len(ctx, QueueReports)
		require.NoError(t, err)
		assert.EqualValues(t, i, n)
	}
	require.NoError(t, q.Retry(ctx, job))
	dlq, err := q.Len(ctx, QueueDLQ)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dlq)
	assert.Equal(t, MaxRetries, job.Attempt)
}
