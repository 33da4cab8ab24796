// Package webhook provides a demo retry-aware handler that re-issues the
// HTTP request described by a record's request payload.
package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openretry/retryd/internal/core/domain"
	"github.com/openretry/retryd/internal/ingest"
)

const maxResponseBytes = 4096

// Handler re-executes a failed webhook delivery. The outcome is reported by
// re-entering the notification pipeline, never by the return value; the
// error return surfaces only hard failures such as a payload missing its
// "url" attribute.
type Handler struct {
	client    *http.Client
	publisher *ingest.Publisher
}

func New(publisher *ingest.Publisher) *Handler {
	return &Handler{
		client:    &http.Client{Timeout: 10 * time.Second},
		publisher: publisher,
	}
}

// InvokeRetry implements dispatch.Handler.
func (h *Handler) InvokeRetry(ctx context.Context, record domain.RetryLogRecord) error {
	url, err := record.RequestPayload.RequireAttribute("url")
	if err != nil {
		return err
	}
	method, ok := record.RequestPayload.Attribute("method")
	if !ok {
		method = http.MethodPost
	}
	body, _ := record.RequestPayload.Attribute("body")

	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	if contentType, ok := record.RequestPayload.Attribute("content_type"); ok {
		req.Header.Set("Content-Type", contentType)
	}

	outcome := domain.FailureNotification{
		RecordID:       record.ID,
		ProcessName:    record.ProcessName,
		MethodName:     record.MethodName,
		RequestPayload: record.RequestPayload,
	}

	resp, err := h.client.Do(req)
	if err != nil {
		outcome.Status = domain.StatusFailure
		outcome.ErrorMessage = err.Error()
		return h.publisher.Publish(ctx, []domain.FailureNotification{outcome})
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	outcome.ResponsePayload = domain.Payload(respBody)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Status = domain.StatusSuccess
		outcome.Processed = true
	} else {
		outcome.Status = domain.StatusFailure
		outcome.ErrorMessage = fmt.Sprintf("webhook returned HTTP %d", resp.StatusCode)
	}

	return h.publisher.Publish(ctx, []domain.FailureNotification{outcome})
}
