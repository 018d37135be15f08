package amqp

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	want := map[int]time.Duration{
		0:  time.Second,
		1:  2 * time.Second,
		3:  8 * time.Second,
		4:  16 * time.Second,
		5:  30 * time.Second,
		12: 30 * time.Second,
	}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, d)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:5672: connection refused"), true},
		{errors.New("Exception (504) Reason: \"connection closed\""), true},
		{errors.New("read tcp: unexpected EOF"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("use of closed network connection"), true},
		{errors.New("channel/connection is not open"), false},
		{errors.New("invalid routing key"), false},
	}
	for _, tc := range cases {
		if got := isConnectionError(tc.err); got != tc.want {
			t.Errorf("isConnectionError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

// failTimes records n publish failures on the breaker.
func failTimes(c *Client, n int) {
	for i := 0; i < n; i++ {
		c.recordFailure()
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		arrange   func(c *Client)
		wantOpen  bool
		wantState int32
	}{
		{
			name:      "fresh client starts closed",
			arrange:   func(c *Client) {},
			wantOpen:  false,
			wantState: StateClosed,
		},
		{
			name:      "failures below the threshold keep it closed",
			arrange:   func(c *Client) { failTimes(c, maxFailures-1) },
			wantOpen:  false,
			wantState: StateClosed,
		},
		{
			name:      "reaching the threshold opens it",
			arrange:   func(c *Client) { failTimes(c, maxFailures) },
			wantOpen:  true,
			wantState: StateOpen,
		},
		{
			name: "a success closes it again and clears the count",
			arrange: func(c *Client) {
				failTimes(c, maxFailures)
				c.recordSuccess()
			},
			wantOpen:  false,
			wantState: StateClosed,
		},
		{
			name: "half-opens once the timeout elapses",
			arrange: func(c *Client) {
				failTimes(c, maxFailures)
				c.mu.Lock()
				c.lastFailure = time.Now().Add(-openTimeout - time.Second)
				c.mu.Unlock()
			},
			wantOpen:  false,
			wantState: StateHalfOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{}
			tt.arrange(c)

			if got := c.isCircuitOpen(); got != tt.wantOpen {
				t.Errorf("isCircuitOpen() = %v, want %v", got, tt.wantOpen)
			}
			if got := atomic.LoadInt32(&c.state); got != tt.wantState {
				t.Errorf("state = %d, want %d", got, tt.wantState)
			}
		})
	}
}

func TestRecordSuccessClearsFailureCount(t *testing.T) {
	c := &Client{}
	failTimes(c, maxFailures)
	c.recordSuccess()

	if n := atomic.LoadInt64(&c.failureCount); n != 0 {
		t.Errorf("failure count = %d after success, want 0", n)
	}
}

func TestPublishSnapshotFailsFastWhenOpen(t *testing.T) {
	c := &Client{}
	failTimes(c, maxFailures)

	err := c.PublishSnapshot(context.Background(), "snap-1", "annual", 2026)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("want a fail-fast error on an open circuit, got %v", err)
	}
}

func TestPublishSnapshotCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Client{}
	if err := c.PublishSnapshot(ctx, "snap-1", "annual", 2026); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestNewSnapshotMessage(t *testing.T) {
	msg := NewSnapshotMessage("snap-42", "fiscal", 2026)

	if msg.SnapshotID != "snap-42" || msg.Model != "fiscal" || msg.Year != 2026 {
		t.Errorf("NewSnapshotMessage() = %+v", msg)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Errorf("NewSnapshotMessage() Timestamp = %v, want recent", msg.Timestamp)
	}
}

func TestSnapshotMessage_JSON(t *testing.T) {
	msg := &SnapshotMessage{
		SnapshotID: "snap-42",
		Model:      "annual",
		Year:       2026,
		Timestamp:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SnapshotMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("SnapshotMessageFromJSON() error = %v", err)
	}

	if parsed.SnapshotID != msg.SnapshotID || parsed.Model != msg.Model || parsed.Year != msg.Year {
		t.Errorf("round trip = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("round trip Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestSnapshotMessage_InvalidJSON(t *testing.T) {
	if _, err := SnapshotMessageFromJSON([]byte(`{"year": "not_a_number"}`)); err == nil {
		t.Error("SnapshotMessageFromJSON() should fail with invalid JSON")
	}
}
