package speech

import (
	"encoding/json"
	"net/http"
)

// Category tags a speech error so callers can branch on a type check
// instead of matching message text.
type Category string

const (
	// CategoryUnusualActivity - the vendor flagged the account and
	// suspended synthesis (free-plan abuse detection).
	CategoryUnusualActivity Category = "unusual_activity"
	// CategoryUnauthorized - credential rejected.
	CategoryUnauthorized Category = "unauthorized"
	// CategoryRateLimited - too many requests.
	CategoryRateLimited Category = "rate_limited"
	// CategoryUnavailable - anything else, including transport errors.
	CategoryUnavailable Category = "unavailable"
)

// Error is a classified speech API failure.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// User-facing messages per category.
const (
	msgUnusualActivity = "speech is temporarily unavailable due to plan restrictions"
	msgUnauthorized    = "speech authentication is unavailable"
	msgRateLimited     = "speech rate limit reached, try again shortly"
	msgUnavailable     = "speech is currently unavailable"
)

type errorBody struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// classify maps a non-success vendor response to a tagged error. The
// body is inspected first: the unusual-activity status outranks the
// HTTP status code.
func classify(statusCode int, body []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch {
	case eb.Detail.Status == "detected_unusual_activity":
		return &Error{Category: CategoryUnusualActivity, Message: msgUnusualActivity}
	case statusCode == http.StatusUnauthorized:
		return &Error{Category: CategoryUnauthorized, Message: msgUnauthorized}
	case statusCode == http.StatusTooManyRequests:
		return &Error{Category: CategoryRateLimited, Message: msgRateLimited}
	default:
		return &Error{Category: CategoryUnavailable, Message: msgUnavailable}
	}
}
