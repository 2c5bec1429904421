package export

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 2 * time.Second
)

// retryable reports whether err is a rate limit or a transient server error
// from a Google API or Notion.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	var notionErr *notionapi.Error
	if errors.As(err, &notionErr) {
		return notionErr.Status == http.StatusTooManyRequests || notionErr.Status >= http.StatusInternalServerError
	}

	return false
}

func withRetry(ctx context.Context, log zerolog.Logger, attempts uint, delay time.Duration, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			if retryable(err) {
				log.Warn().Err(err).Msg("Rate limited, will retry")
				return true
			}
			return false
		}),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
	)
}
