package notifxconsole

import (
	"context"
	"strings"

	"github.com/raffleport/relay/pkg/logx"
	"github.com/raffleport/relay/pkg/notifx"
)

// ConsoleProvider logs emails instead of sending them. For development and
// deployments with no mail provider configured.
type ConsoleProvider struct{}

// NewConsoleProvider creates a console email provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// SendEmail logs the message at warn level so alerts stay visible in
// default log configurations.
func (p *ConsoleProvider) SendEmail(_ context.Context, msg notifx.EmailMessage) error {
	logx.WithFields(logx.Fields{
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Warn("notifx/console: alert email (not delivered)")

	if msg.TextBody != "" {
		logx.Warnf("notifx/console: body: %s", msg.TextBody)
	}
	return nil
}
