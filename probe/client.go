package probe

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fintra/credvault/logger"
)

// newRetryClient builds the retryable HTTP client used by HTTP probers: a
// bounded retry budget with jittered backoff over the shared transport.
// Hard timeouts come from the per-call context set by the dispatcher.
func newRetryClient(log logger.Logger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: probeTransport(),
	}
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.Backoff = retryablehttp.RateLimitLinearJitterBackoff
	client.Logger = &retryLogger{log: log.WithSubsystem("http")}
	return client
}

// retryLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	log logger.Logger
}

func (r *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.log.Error(msg, kvFields(keysAndValues)...)
}

func (r *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.log.Info(msg, kvFields(keysAndValues)...)
}

func (r *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.log.Debug(msg, kvFields(keysAndValues)...)
}

func (r *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.log.Warn(msg, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logger.TypedField {
	fields := make([]logger.TypedField, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
