package notifications

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/resilience"
)

// ResilientSender wraps a Sender with retries and a circuit breaker so a
// flapping relay does not stall request handlers that wait on the fan-out.
type ResilientSender struct {
	sender  Sender
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

func NewResilientSender(sender Sender, breaker *resilience.CircuitBreaker) *ResilientSender {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.Settings{
			Name:             "smtp-email",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}, nil)
	}

	// Mail can be late; retries stay conservative.
	retry := resilience.ConservativeRetryConfig()
	retry.MaxAttempts = 3
	retry.InitialBackoff = 2 * time.Second
	retry.MaxBackoff = 15 * time.Second
	retry.RetryableChecker = isEmailRetryable

	return &ResilientSender{
		sender:  sender,
		breaker: breaker,
		retry:   retry,
	}
}

func (r *ResilientSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return nil, r.sender.Send(ctx, to, subject, htmlBody)
	})
	if err != nil {
		logger.ErrorContext(ctx, "email delivery failed after retries",
			zap.Error(err),
			zap.String("to", maskEmail(to)),
			zap.String("subject", subject),
		)
		return common.NewUpstreamError("email delivery failed", err).WithCode(CodeEmailSendFailed)
	}

	logger.DebugContext(ctx, "email delivered",
		zap.String("to", maskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}

// isEmailRetryable separates transient relay trouble from permanent SMTP
// rejections. Permanent rejections must not burn retry attempts.
func isEmailRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	transient := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"421",
		"450",
		"451",
		"452",
		"network is unreachable",
		"i/o timeout",
		"eof",
		"too many connections",
	}
	for _, s := range transient {
		if strings.Contains(msg, s) {
			return true
		}
	}

	permanent := []string{
		"550",
		"551",
		"553",
		"554",
		"invalid address",
		"mailbox not found",
		"user unknown",
		"authentication failed",
		"auth failed",
		"access denied",
		"context canceled",
		"context deadline exceeded",
	}
	for _, s := range permanent {
		if strings.Contains(msg, s) {
			return false
		}
	}

	return true
}

// maskEmail keeps the first character and the domain for logs.
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) == 0 {
		return "***"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}
