package utils

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const retryMaxAttempts = 3

var retrySleep = time.Sleep

// Error fragments that indicate a transient network problem between the
// service and the store. Anything else (constraint violations, bad SQL,
// validation) must surface on the first occurrence.
var transientErrorIndicators = []string{
	"fetch failed",
	"network",
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"i/o timeout",
	"bad connection",
}

func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range transientErrorIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// WithRetry runs op, retrying transient network failures with exponential
// backoff (250ms * 2^attempt, max 3 attempts). This is the only place retry
// policy lives; store-call sites stay retry-agnostic.
func WithRetry(logger *logrus.Logger, label string, op func() error) error {
	var err error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) || attempt == retryMaxAttempts-1 {
			return err
		}
		backoff := 250 * time.Millisecond * time.Duration(1<<attempt)
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"label":   label,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warn(err.Error())
		}
		retrySleep(backoff)
	}
	return err
}
