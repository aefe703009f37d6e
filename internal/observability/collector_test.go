package observability

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionCollector_RecordRequest(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/api/v1/users/me", StatusCode: 200, Duration: 50 * time.Millisecond})
	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/api/v1/routing/queues", StatusCode: 500, Duration: 10 * time.Millisecond, Error: errors.New("server error")})

	summary := c.Summary()
	if summary.TotalRequests != 2 {
		t.Errorf("expected 2 total requests, got %d", summary.TotalRequests)
	}
	if summary.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", summary.FailedRequests)
	}
	if summary.TotalLatency != 60*time.Millisecond {
		t.Errorf("expected 60ms total latency, got %v", summary.TotalLatency)
	}
}

func TestSessionCollector_RecordOperation(t *testing.T) {
	c := NewSessionCollector()

	c.RecordOperation(OperationMetrics{Namespace: "voicemail", Operation: "getMessages", Duration: 100 * time.Millisecond})
	c.RecordOperation(OperationMetrics{Namespace: "voicemail", Operation: "deleteMessage", IsMutation: true, Error: errors.New("network error")})

	summary := c.Summary()
	if summary.TotalOperations != 2 {
		t.Errorf("expected 2 total operations, got %d", summary.TotalOperations)
	}
	if summary.FailedOps != 1 {
		t.Errorf("expected 1 failed op, got %d", summary.FailedOps)
	}
}

func TestSessionCollector_Summary_Times(t *testing.T) {
	c := NewSessionCollector()
	time.Sleep(5 * time.Millisecond)

	summary := c.Summary()
	if !summary.EndTime.After(summary.StartTime) {
		t.Errorf("expected end time after start time")
	}
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()
	c.RecordRequest(RequestMetrics{Duration: time.Millisecond})
	c.RecordOperation(OperationMetrics{Error: errors.New("x")})

	c.Reset()

	summary := c.Summary()
	if summary.TotalRequests != 0 || summary.TotalOperations != 0 || summary.FailedOps != 0 || summary.TotalLatency != 0 {
		t.Errorf("expected zeroed summary after reset, got %+v", summary)
	}
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.RecordRequest(RequestMetrics{Duration: time.Millisecond})
		}()
		go func() {
			defer wg.Done()
			c.RecordOperation(OperationMetrics{})
		}()
	}
	wg.Wait()

	summary := c.Summary()
	if summary.TotalRequests != 50 {
		t.Errorf("expected 50 requests, got %d", summary.TotalRequests)
	}
	if summary.TotalOperations != 50 {
		t.Errorf("expected 50 operations, got %d", summary.TotalOperations)
	}
}
