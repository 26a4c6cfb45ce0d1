package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/kirillkom/chat-rag/internal/infrastructure/resilience"
)

type statusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch %s status: %s", e.URL, e.Status)
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var status *statusError
	if errors.As(err, &status) {
		retryable := isRetryableStatus(status.StatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
