package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"civigate/internal/domain/models"
)

// FetchFirstSuccess walks an ordered candidate list of read endpoints and
// returns the first successful envelope.
//
// A 403 from an endpoint usually means "wrong role for this route", not
// "data unavailable", so authorization denials fall through to the next
// candidate. A 401 or any other failure class stops iteration immediately
// and propagates. A successful response with an empty payload is a
// terminal application error, never a fallback trigger.
func (c *Client) FetchFirstSuccess(ctx context.Context, paths []string, query url.Values) (*Envelope, error) {
	if len(paths) == 0 {
		return nil, errors.New("no read endpoints configured")
	}

	var lastErr error
	attempted := 0

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempted++
		env, err := c.get(ctx, path, query)
		if err == nil {
			if len(env.Data) == 0 || string(env.Data) == "null" {
				return nil, fmt.Errorf("endpoint %s returned an empty payload", path)
			}
			return env, nil
		}

		if errors.Is(err, models.ErrPermissionDenied) {
			c.logger.Debug().Str("path", path).Msg("endpoint denied access, trying next")
			lastErr = err
			continue
		}

		// Session expiry and every other failure class are terminal.
		return nil, err
	}

	return nil, &models.EndpointsExhaustedError{
		Attempted: attempted,
		LastErr:   lastErr,
	}
}
