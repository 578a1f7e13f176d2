package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published []string
	closed    bool
}

func (f *flakyPublisher) Publish(_ context.Context, r *models.AnalysisReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("broker down")
	}
	f.published = append(f.published, r.Asset)
	return nil
}

func (f *flakyPublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *flakyPublisher) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func TestDispatcherPublishesDirectly(t *testing.T) {
	pub := &flakyPublisher{}
	d := NewReportDispatcher(pub)

	require.NoError(t, d.Publish(context.Background(), &models.AnalysisReport{Asset: "SPY"}))
	assert.Equal(t, []string{"SPY"}, pub.sent())
	assert.Zero(t, d.Pending())
}

func TestDispatcherBuffersAndRetries(t *testing.T) {
	pub := &flakyPublisher{failFirst: 2}
	d := NewReportDispatcher(pub, WithBackoff(time.Millisecond, 4*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := d.Publish(ctx, &models.AnalysisReport{Asset: "TSLA"})
	require.Error(t, err)

	d.Start(ctx)
	defer d.Stop()

	assert.Eventually(t, func() bool {
		return len(pub.sent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"TSLA"}, pub.sent())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	pub := &flakyPublisher{failFirst: 10}
	d := NewReportDispatcher(pub, WithBufferSize(1))

	_ = d.Publish(context.Background(), &models.AnalysisReport{Asset: "A"})
	_ = d.Publish(context.Background(), &models.AnalysisReport{Asset: "B"})
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcherRejectsNil(t *testing.T) {
	assert.Error(t, NewReportDispatcher(&flakyPublisher{}).Publish(context.Background(), nil))
}

func TestDispatcherCloseClosesPublisher(t *testing.T) {
	pub := &flakyPublisher{}
	d := NewReportDispatcher(pub)
	d.Start(context.Background())
	require.NoError(t, d.Close())
	assert.True(t, pub.closed)
}
