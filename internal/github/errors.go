package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError describes a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string

	// RateLimited is set for exhausted primary or secondary rate limits.
	RateLimited bool
	// RetryAt is when the rate limit resets, when known.
	RetryAt time.Time
	// RetryIn is RetryAt relative to the time of the response, rounded to seconds.
	RetryIn time.Duration
	// Unauthenticated reports that the request carried no token.
	Unauthenticated bool
}

func (err *APIError) Error() string {
	if err.RateLimited {
		msg := fmt.Sprintf("github: API rate limit exceeded; retry in %s at %s",
			err.RetryIn, err.RetryAt.Local().Format(time.RFC1123))
		if err.Unauthenticated {
			msg += "; set GH_TOKEN to raise the limit"
		}
		return msg
	}
	if err.Message == "" {
		return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.URL)
	}
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// IsRateLimited reports an exhausted rate limit.
func IsRateLimited(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.RateLimited
}

// IsTransient reports responses worth retrying: 429, 5xx, and 408.
func IsTransient(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	switch {
	case apiError.StatusCode == http.StatusTooManyRequests,
		apiError.StatusCode == http.StatusRequestTimeout,
		apiError.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func (c *Client) apiError(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, URL: resp.Request.URL.String()}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
	}

	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return apiErr
	}
	now := c.clock.Now()
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	reset := resp.Header.Get("X-RateLimit-Reset")
	retryAfter := resp.Header.Get("Retry-After")
	switch {
	case remaining == "0" && reset != "":
		unix, err := strconv.ParseInt(reset, 10, 64)
		if err != nil {
			return apiErr
		}
		apiErr.RetryAt = time.Unix(unix, 0)
	case retryAfter != "":
		seconds, err := strconv.ParseFloat(retryAfter, 64)
		if err != nil {
			return apiErr
		}
		apiErr.RetryAt = now.Add(time.Duration(seconds * float64(time.Second)))
	case resp.StatusCode == http.StatusTooManyRequests || strings.Contains(strings.ToLower(apiErr.Message), "rate limit"):
		apiErr.RetryAt = now.Add(time.Minute)
	default:
		return apiErr
	}
	apiErr.RateLimited = true
	apiErr.RetryIn = apiErr.RetryAt.Sub(now).Round(time.Second)
	apiErr.Unauthenticated = c.token == ""
	return apiErr
}
