package journal

import (
	"github.com/sirupsen/logrus"

	"github.com/osmium-labs/chassis/pkg/logger"
)

// Bridge returns a Handler that forwards records to the given logger at the
// matching level. Attach it with Subscribe to turn the journal into the
// textual log stream.
func Bridge(log *logger.Logger) Handler {
	return func(rec Record) {
		entry := log.Entry().WithFields(logrus.Fields{
			"record": string(rec.Type),
		})
		if rec.Component != "" {
			entry = entry.WithField("target", rec.Component)
		}
		if rec.Duration > 0 {
			entry = entry.WithField("duration", rec.Duration.String())
		}
		if rec.Error != "" {
			entry = entry.WithField("error", rec.Error)
		}

		msg := rec.Message
		if msg == "" {
			msg = string(rec.Type)
		}

		switch rec.Severity {
		case SeverityDebug:
			entry.Debug(msg)
		case SeverityWarning:
			entry.Warn(msg)
		case SeverityError:
			entry.Error(msg)
		default:
			entry.Info(msg)
		}
	}
}
