package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

type stubJob struct {
	err   error
	got   []byte
	calls int
}

func (j *stubJob) Name() string { return "stub" }
func (j *stubJob) Type() string { return "analyze_asset" }

func (j *stubJob) Handle(_ context.Context, payload []byte) error {
	j.calls++
	j.got = payload
	return j.err
}

func newQueue(t *testing.T, job Job) (*RedisQueue, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	q := NewRedisQueue(nil, Config{RetryLimit: 2, RetryDelay: 30 * time.Second}, db, WithClock(func() time.Time { return fixed }))
	if job != nil {
		q.RegisterJob(job)
	}
	return q, mock
}

func TestEnqueueRejectsUnknownType(t *testing.T) {
	q, _ := newQueue(t, nil)
	_, err := q.Enqueue(context.Background(), "analyze_asset", map[string]string{"asset": "AAPL"})
	assert.ErrorContains(t, err, "no job registered")
}

func TestEnqueue(t *testing.T) {
	q, mock := newQueue(t, &stubJob{})

	var pushed Message
	mock.CustomMatch(func(_, actual []interface{}) error {
		if len(actual) != 3 || actual[1] != "riskpulse:queue:messages" {
			return fmt.Errorf("unexpected args %v", actual)
		}
		var raw []byte
		switch v := actual[2].(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		}
		return json.Unmarshal(raw, &pushed)
	}).ExpectLPush("riskpulse:queue:messages", "ignored").SetVal(1)

	id, err := q.Enqueue(context.Background(), "analyze_asset", map[string]string{"asset": "AAPL"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, pushed.ID)
	assert.Equal(t, "analyze_asset", pushed.Type)
	assert.JSONEq(t, `{"asset":"AAPL"}`, string(pushed.Payload))
	assert.Equal(t, fixed, pushed.Timestamp)
}

func TestProcessSuccess(t *testing.T) {
	job := &stubJob{}
	q, mock := newQueue(t, job)

	q.process(context.Background(), Message{ID: "1", Type: "analyze_asset", Payload: json.RawMessage(`{"asset":"TSLA"}`)})
	assert.Equal(t, 1, job.calls)
	assert.JSONEq(t, `{"asset":"TSLA"}`, string(job.got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessSchedulesRetry(t *testing.T) {
	q, mock := newQueue(t, &stubJob{err: errors.New("upstream down")})

	msg := Message{ID: "1", Type: "analyze_asset", Payload: json.RawMessage(`{}`)}
	retried := msg
	retried.Attempts = 1
	data, err := json.Marshal(retried)
	require.NoError(t, err)
	mock.ExpectZAdd("riskpulse:queue:retry", redis.Z{Score: float64(fixed.Add(30 * time.Second).Unix()), Member: data}).SetVal(1)

	q.process(context.Background(), msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessDeadLetters(t *testing.T) {
	q, mock := newQueue(t, &stubJob{err: errors.New("still down")})

	msg := Message{ID: "1", Type: "analyze_asset", Payload: json.RawMessage(`{}`), Attempts: 2}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	mock.ExpectLPush("riskpulse:queue:dlq", data).SetVal(1)

	q.process(context.Background(), msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteDue(t *testing.T) {
	q, mock := newQueue(t, &stubJob{})

	mock.ExpectZRangeByScore("riskpulse:queue:retry", &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprint(fixed.Unix()),
	}).SetVal([]string{"m1"})
	mock.ExpectTxPipeline()
	mock.ExpectZRem("riskpulse:queue:retry", "m1").SetVal(1)
	mock.ExpectLPush("riskpulse:queue:messages", "m1").SetVal(1)
	mock.ExpectTxPipelineExec()

	assert.Equal(t, 1, q.promoteDue(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParsePayload(t *testing.T) {
	type req struct {
		Asset string `json:"asset"`
	}
	out, err := ParsePayload[req]([]byte(`{"asset":"NVDA"}`))
	require.NoError(t, err)
	assert.Equal(t, "NVDA", out.Asset)

	_, err = ParsePayload[req]([]byte(`not json`))
	assert.Error(t, err)
}
