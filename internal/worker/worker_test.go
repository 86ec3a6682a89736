package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) byTag() map[uint64]ackRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]ackRecord, len(f.records))
	for _, r := range f.records {
		out[r.tag] = r
	}
	return out
}

type fakeSource struct {
	ch chan amqp.Delivery
}

func (f *fakeSource) Consume(string, int) (<-chan amqp.Delivery, error) {
	return f.ch, nil
}

type scriptedProcessor struct {
	mu      sync.Mutex
	results map[string]error
	seen    []string
}

func (p *scriptedProcessor) Process(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, jobID)
	return p.results[jobID]
}

const (
	jobOK        = "6f1c7d64-8d9a-4c55-9b0a-0d9b1f4a7c01"
	jobFailed    = "6f1c7d64-8d9a-4c55-9b0a-0d9b1f4a7c02"
	jobTransient = "6f1c7d64-8d9a-4c55-9b0a-0d9b1f4a7c03"
	jobTerminal  = "6f1c7d64-8d9a-4c55-9b0a-0d9b1f4a7c04"
	jobBroken    = "6f1c7d64-8d9a-4c55-9b0a-0d9b1f4a7c05"
)

type processorFunc func(ctx context.Context, jobID string) error

func (f processorFunc) Process(ctx context.Context, jobID string) error { return f(ctx, jobID) }

func TestWorker_AcksAndNacks(t *testing.T) {
	acker := &fakeAcknowledger{}
	source := &fakeSource{ch: make(chan amqp.Delivery, 8)}
	processor := &scriptedProcessor{results: map[string]error{
		jobFailed:    fmt.Errorf("%w: AI completion failed", domain.ErrJobFailed),
		jobTransient: domain.NewRetryableError(errors.New("connection refused")),
		jobTerminal:  domain.ErrJobAlreadyTerminal,
		jobBroken:    errors.New("failed to record job result: disk full"),
	}}

	bodies := []string{
		`{"job_id":"` + jobOK + `"}`,
		`{"job_id":"` + jobFailed + `"}`,
		`{"job_id":"` + jobTransient + `"}`,
		`{"job_id":"` + jobTerminal + `"}`,
		`{"job_id":"` + jobBroken + `"}`,
		`not json`,
		`{"job_id":"not-a-uuid"}`,
	}
	for i, b := range bodies {
		source.ch <- amqp.Delivery{Acknowledger: acker, DeliveryTag: uint64(i + 1), Body: []byte(b)}
	}
	close(source.ch)

	w := NewWorker(&Config{
		Logger:        discardLogger(),
		Source:        source,
		Processor:     processor,
		WorkerID:      "worker-test",
		Concurrency:   3,
		PrefetchCount: 3,
	})

	done := make(chan error)
	go func() { done <- w.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after delivery channel closed")
	}

	got := acker.byTag()
	require.Len(t, got, len(bodies))

	assert.True(t, got[1].ack, "completed job is acked")
	assert.True(t, got[2].ack, "recorded failure is acked")
	assert.False(t, got[3].ack)
	assert.True(t, got[3].requeue, "transient error is requeued")
	assert.True(t, got[4].ack, "terminal job is acked")
	assert.False(t, got[5].ack)
	assert.False(t, got[5].requeue, "unknown error is dropped")
	assert.False(t, got[6].ack)
	assert.False(t, got[6].requeue, "malformed JSON is dropped")
	assert.False(t, got[7].requeue, "invalid job id is dropped")

	assert.Len(t, processor.seen, 5)
}

func TestWorker_StopDrainsInFlight(t *testing.T) {
	acker := &fakeAcknowledger{}
	source := &fakeSource{ch: make(chan amqp.Delivery)}
	started := make(chan struct{})
	release := make(chan struct{})
	w := NewWorker(&Config{
		Logger: discardLogger(),
		Source: source,
		Processor: processorFunc(func(context.Context, string) error {
			close(started)
			<-release
			return nil
		}),
		WorkerID:    "worker-test",
		Concurrency: 1,
	})

	done := make(chan error)
	go func() { done <- w.Start(context.Background()) }()

	source.ch <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"job_id":"` + jobOK + `"}`)}
	<-started
	w.Stop()
	w.Stop()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.True(t, acker.byTag()[1].ack)
}

func TestParseJobMessage(t *testing.T) {
	id, err := parseJobMessage([]byte(`{"job_id":"` + jobOK + `"}`))
	require.NoError(t, err)
	assert.Equal(t, jobOK, id)

	_, err = parseJobMessage([]byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
