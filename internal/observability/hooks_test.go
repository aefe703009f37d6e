package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/purecloudlabs/purecloud-cli/internal/api"
	"github.com/purecloudlabs/purecloud-cli/internal/endpoint"
)

var (
	testOp     = endpoint.OperationInfo{Namespace: "voicemail", Operation: "getMessages", Method: "GET"}
	testInfo   = api.RequestInfo{Method: "GET", URL: "https://api.mypurecloud.com/api/v1/voicemail/messages"}
	testResult = api.RequestResult{StatusCode: 200, Duration: 45 * time.Millisecond}
)

func TestCLIHooks_SetLevel(t *testing.T) {
	h := NewCLIHooks(0, nil, nil)

	assert.Equal(t, 0, h.Level())

	h.SetLevel(2)
	assert.Equal(t, 2, h.Level())
}

func TestCLIHooks_Level0_Silent(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(0, collector, NewTraceWriterTo(&buf))

	ctx := h.OnOperationStart(context.Background(), testOp)
	reqCtx := h.OnRequestStart(ctx, testInfo)
	h.OnRequestEnd(reqCtx, testInfo, testResult)
	h.OnOperationEnd(ctx, testOp, nil, 50*time.Millisecond)

	assert.Equal(t, 0, buf.Len(), "expected no output at level 0")

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalOperations)
	assert.Equal(t, 1, summary.TotalRequests)
}

func TestCLIHooks_Level1_OperationsOnly(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(1, nil, NewTraceWriterTo(&buf))

	ctx := h.OnOperationStart(context.Background(), testOp)
	reqCtx := h.OnRequestStart(ctx, testInfo)
	h.OnRequestEnd(reqCtx, testInfo, testResult)
	h.OnOperationEnd(ctx, testOp, nil, 50*time.Millisecond)

	output := buf.String()
	assert.Contains(t, output, "Calling voicemail.getMessages")
	assert.Contains(t, output, "Completed voicemail.getMessages")
	assert.NotContains(t, output, "-> GET", "unexpected request output at level 1")
}

func TestCLIHooks_Level2_OperationsAndRequests(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(2, nil, NewTraceWriterTo(&buf))

	ctx := h.OnOperationStart(context.Background(), testOp)
	reqCtx := h.OnRequestStart(ctx, testInfo)
	h.OnRequestEnd(reqCtx, testInfo, testResult)
	h.OnOperationEnd(ctx, testOp, nil, 50*time.Millisecond)

	output := buf.String()
	assert.Contains(t, output, "Calling voicemail.getMessages")
	assert.Contains(t, output, "-> GET https://api.mypurecloud.com/api/v1/voicemail/messages")
	assert.Contains(t, output, "<- 200")
}

func TestCLIHooks_OperationError(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(1, collector, NewTraceWriterTo(&buf))

	ctx := h.OnOperationStart(context.Background(), testOp)
	h.OnOperationEnd(ctx, testOp, errors.New("permission denied"), 50*time.Millisecond)

	output := buf.String()
	assert.Contains(t, output, "Failed voicemail.getMessages")
	assert.Contains(t, output, "permission denied")

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalOperations)
	assert.Equal(t, 1, summary.FailedOps)
}

func TestCLIHooks_FailedRequest(t *testing.T) {
	collector := NewSessionCollector()
	h := NewCLIHooks(0, collector, nil)

	ctx := h.OnRequestStart(context.Background(), testInfo)
	h.OnRequestEnd(ctx, testInfo, api.RequestResult{StatusCode: 401, Error: errors.New("Authentication failed")})

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalRequests)
	assert.Equal(t, 1, summary.FailedRequests)
}

func TestCLIHooks_NilCollector(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(2, nil, NewTraceWriterTo(&buf))

	ctx := h.OnOperationStart(context.Background(), testOp)
	h.OnOperationEnd(ctx, testOp, nil, 50*time.Millisecond)
	ctx = h.OnRequestStart(ctx, testInfo)
	h.OnRequestEnd(ctx, testInfo, testResult)

	assert.True(t, buf.Len() > 0, "expected output even with nil collector")
}

func TestCLIHooks_NilWriter(t *testing.T) {
	collector := NewSessionCollector()
	h := NewCLIHooks(2, collector, nil)

	ctx := h.OnOperationStart(context.Background(), testOp)
	h.OnOperationEnd(ctx, testOp, nil, 50*time.Millisecond)
	ctx = h.OnRequestStart(ctx, testInfo)
	h.OnRequestEnd(ctx, testInfo, testResult)

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalOperations)
	assert.Equal(t, 1, summary.TotalRequests)
}
