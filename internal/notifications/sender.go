package notifications

import (
	"context"

	"go.uber.org/zap"

	"github.com/sabanago/ride-sharing/pkg/logger"
)

// CodeEmailSendFailed marks SMTP delivery failures on the rare paths that
// surface them to a client. Most callers log and move on.
const CodeEmailSendFailed = "EMAIL_SEND_FAILED"

// Sender delivers one rendered email. Implementations must honour context
// cancellation; callers bound every send with a timeout.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogSender is the stand-in when SMTP is not configured. Local and test
// environments run with it so flows that send mail still work end to end.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.InfoContext(ctx, "email delivery skipped, smtp disabled",
		zap.String("to", maskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}
