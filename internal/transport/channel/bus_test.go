package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/UnionVMS/UVMS-Subscription-APP-sub000/internal/domain"
)

func newTestMessage() domain.Message {
	return domain.Message{
		ID:          uuid.NewString(),
		Destination: domain.DestinationTriggering,
		Source:      domain.SourceManual,
		Payload:     "m;1;SUBSCRIPTION_ASSETS;1;10",
		ReceivedAt:  time.Now().UTC(),
	}
}

func TestEventBus_SendAndReceive(t *testing.T) {
	bus := NewEventBus(10)
	msg := newTestMessage()

	ctx := context.Background()
	if err := bus.Send(ctx, msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case got := <-bus.Messages(ctx, domain.DestinationTriggering):
		if got.ID != msg.ID {
			t.Errorf("ID = %v, want %v", got.ID, msg.ID)
		}
		if got.Payload != msg.Payload {
			t.Errorf("Payload = %v, want %v", got.Payload, msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on channel")
	}
}

func TestEventBus_DestinationsAreSeparate(t *testing.T) {
	bus := NewEventBus(10)
	ctx := context.Background()

	exec := newTestMessage()
	exec.Destination = domain.DestinationExecution
	if err := bus.Send(ctx, exec); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if n := bus.Len(domain.DestinationTriggering); n != 0 {
		t.Errorf("triggering destination has %d messages, want 0", n)
	}
	if n := bus.Len(domain.DestinationExecution); n != 1 {
		t.Errorf("execution destination has %d messages, want 1", n)
	}
}

func TestEventBus_BufferFull(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(50*time.Millisecond))

	ctx := context.Background()

	// Fill the buffer
	if err := bus.Send(ctx, newTestMessage()); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	err := bus.Send(ctx, newTestMessage())
	if err != ErrBufferFull {
		t.Errorf("expected ErrBufferFull, got: %v", err)
	}
}

func TestEventBus_ContextCancelled(t *testing.T) {
	bus := NewEventBus(1, WithEmitTimeout(5*time.Second))

	ctx := context.Background()
	if err := bus.Send(ctx, newTestMessage()); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Send(cancelledCtx, newTestMessage())
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestEventBus_ConcurrentSend(t *testing.T) {
	bus := NewEventBus(1000)
	ctx := context.Background()

	const numGoroutines = 10
	const messagesPerGoroutine = 100

	var wg sync.WaitGroup
	var sendErrors atomic.Int64

	var received atomic.Int64
	done := make(chan struct{})
	go func() {
		for range bus.Messages(ctx, domain.DestinationTriggering) {
			if received.Add(1) >= numGoroutines*messagesPerGoroutine {
				close(done)
				return
			}
		}
	}()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < messagesPerGoroutine; j++ {
				if err := bus.Send(ctx, newTestMessage()); err != nil {
					sendErrors.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Errorf("received %d of %d messages", received.Load(), numGoroutines*messagesPerGoroutine)
	}

	if sendErrors.Load() > 0 {
		t.Errorf("had %d send errors", sendErrors.Load())
	}
}

func TestEventBus_DefaultEmitTimeout(t *testing.T) {
	bus := NewEventBus(10)

	if bus.emitTimeout != DefaultEmitTimeout {
		t.Errorf("emitTimeout = %v, want %v", bus.emitTimeout, DefaultEmitTimeout)
	}
}

// mockBusMetrics tracks calls to MetricsSink methods.
type mockBusMetrics struct {
	mu              sync.Mutex
	bufferSizeCalls []int
	emitErrorCalls  int
}

func (m *mockBusMetrics) BufferSizeUpdate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bufferSizeCalls = append(m.bufferSizeCalls, size)
}

func (m *mockBusMetrics) EmitError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErrorCalls++
}

func TestEventBus_WithMetrics(t *testing.T) {
	metrics := &mockBusMetrics{}
	bus := NewEventBus(10, WithMetrics(metrics))

	if err := bus.Send(context.Background(), newTestMessage()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.bufferSizeCalls) != 1 || metrics.bufferSizeCalls[0] != 1 {
		t.Errorf("BufferSizeUpdate calls = %v, want [1]", metrics.bufferSizeCalls)
	}
}

func TestEventBus_MetricsOnBufferFull(t *testing.T) {
	metrics := &mockBusMetrics{}
	bus := NewEventBus(1, WithEmitTimeout(50*time.Millisecond), WithMetrics(metrics))

	ctx := context.Background()
	_ = bus.Send(ctx, newTestMessage())
	_ = bus.Send(ctx, newTestMessage())

	metrics.mu.Lock()
	errCalls := metrics.emitErrorCalls
	metrics.mu.Unlock()

	if errCalls != 1 {
		t.Errorf("EmitError should be called once on buffer full, got %d", errCalls)
	}
}
