package executor

import (
	"time"

	"github.com/shaiso/agen8/internal/domain"
)

const (
	defaultRetryDelay    = time.Second
	defaultMaxRetryDelay = 30 * time.Second
)

// calculateBackoff вычисляет задержку перед следующей попыткой.
// attempt — номер только что завершившейся попытки (с 1).
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return defaultRetryDelay
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = defaultRetryDelay
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	var delay time.Duration
	switch policy.Backoff {
	case "exponential":
		// delay = initialDelay * 2^(attempt-1)
		delay = initialDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay > maxDelay {
				break
			}
		}
	default:
		// "fixed" или неизвестный — используем initialDelay
		delay = initialDelay
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	return delay
}

// retryPolicy выбирает политику узла или политику по умолчанию.
func (e *Executor) retryPolicy(node *domain.Node) *domain.RetryPolicy {
	if node.Retry != nil {
		return node.Retry
	}
	return e.retry
}

// nodeTimeout выбирает таймаут узла или таймаут по умолчанию.
func (e *Executor) nodeTimeout(node *domain.Node) time.Duration {
	if node.TimeoutSec > 0 {
		return time.Duration(node.TimeoutSec) * time.Second
	}
	return e.timeout
}
