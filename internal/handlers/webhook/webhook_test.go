package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/ingest"
)

func popOutcome(t *testing.T, q *ingest.MemoryQueue) domain.FailureNotification {
	t.Helper()
	batch, err := q.PopBatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("PopBatch failed: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 outcome notification, got %d", len(batch))
	}
	return batch[0]
}

func TestInvokeRetry_SuccessPublishesProcessedOutcome(t *testing.T) {
	var gotMethod, gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	q := ingest.NewMemoryQueue(4)
	h := New(ingest.NewPublisher(q))

	record := domain.RetryLogRecord{
		ID:          "rec-1",
		ProcessName: "webhook",
		RequestPayload: domain.Payload(fmt.Sprintf(
			`{"url":%q,"method":"PUT","body":"hello","content_type":"text/plain"}`, srv.URL)),
	}
	if err := h.InvokeRetry(context.Background(), record); err != nil {
		t.Fatalf("InvokeRetry failed: %v", err)
	}

	if gotMethod != http.MethodPut || gotBody != "hello" || gotContentType != "text/plain" {
		t.Errorf("unexpected request: method=%q body=%q content_type=%q", gotMethod, gotBody, gotContentType)
	}

	outcome := popOutcome(t, q)
	if outcome.RecordID != "rec-1" {
		t.Errorf("outcome must reference the chain, got %q", outcome.RecordID)
	}
	if outcome.Status != domain.StatusSuccess || !outcome.Processed {
		t.Errorf("expected processed success outcome, got status=%s processed=%v",
			outcome.Status, outcome.Processed)
	}
	if outcome.ResponsePayload != `{"ok":true}` {
		t.Errorf("unexpected response payload %q", outcome.ResponsePayload)
	}
}

func TestInvokeRetry_ServerErrorPublishesFailureOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := ingest.NewMemoryQueue(4)
	h := New(ingest.NewPublisher(q))

	record := domain.RetryLogRecord{
		ID:             "rec-1",
		ProcessName:    "webhook",
		RequestPayload: domain.Payload(fmt.Sprintf(`{"url":%q}`, srv.URL)),
	}
	if err := h.InvokeRetry(context.Background(), record); err != nil {
		t.Fatalf("InvokeRetry failed: %v", err)
	}

	outcome := popOutcome(t, q)
	if outcome.Status != domain.StatusFailure || outcome.Processed {
		t.Errorf("expected failure outcome, got status=%s processed=%v",
			outcome.Status, outcome.Processed)
	}
	if outcome.ErrorMessage == "" {
		t.Error("expected an error message on the failure outcome")
	}
}

func TestInvokeRetry_UnreachableHostPublishesFailureOutcome(t *testing.T) {
	q := ingest.NewMemoryQueue(4)
	h := New(ingest.NewPublisher(q))

	record := domain.RetryLogRecord{
		ID:             "rec-1",
		ProcessName:    "webhook",
		RequestPayload: domain.Payload(`{"url":"http://127.0.0.1:1/unreachable"}`),
	}
	if err := h.InvokeRetry(context.Background(), record); err != nil {
		t.Fatalf("InvokeRetry failed: %v", err)
	}

	outcome := popOutcome(t, q)
	if outcome.Status != domain.StatusFailure || outcome.ErrorMessage == "" {
		t.Errorf("expected failure outcome with message, got %+v", outcome)
	}
}

func TestInvokeRetry_MissingURLIsHardFailure(t *testing.T) {
	q := ingest.NewMemoryQueue(4)
	h := New(ingest.NewPublisher(q))

	record := domain.RetryLogRecord{
		ID:             "rec-1",
		ProcessName:    "webhook",
		RequestPayload: domain.Payload(`{"body":"hello"}`),
	}

	err := h.InvokeRetry(context.Background(), record)
	var notFound *domain.AttributeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected AttributeNotFoundError, got %v", err)
	}

	// A hard failure publishes nothing.
	if depth, _ := q.Depth(context.Background()); depth != 0 {
		t.Errorf("expected no outcome published, depth=%d", depth)
	}
}
