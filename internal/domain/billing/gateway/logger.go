package gateway

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
)

// slogAdapter routes stripe-go's leveled logging into slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ stripe.LeveledLoggerInterface = (*slogAdapter)(nil)

func (a *slogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (a *slogAdapter) Infof(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (a *slogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (a *slogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...), "component", "stripe")
}

// StripeError unwraps a Stripe API error from err.
func StripeError(err error) (*stripe.Error, bool) {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
