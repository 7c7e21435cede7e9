package session

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Category buckets API failures the way callers react to them.
type Category string

const (
	CategoryRefreshToken Category = "RefreshToken"
	CategoryRateLimit    Category = "RateLimit"
	CategoryBadRequest   Category = "BadRequest"
	CategoryNotFound     Category = "NotFound"
	CategoryServerError  Category = "ServerError"
	CategoryUnknown      Category = "Unknown"
)

// APIError is a non-success HTTP response from the platform. The body
// is kept verbatim so callers can log or inspect it.
type APIError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Category   Category
	Body       string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("api error %d [%s]: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Category:   categorize(statusCode),
		Body:       string(body),
		Message:    string(body),
	}

	// REST errors arrive as [{"message":..., "errorCode":...}].
	if msg := gjson.GetBytes(body, "0.message"); msg.Exists() {
		apiErr.Message = msg.String()
		apiErr.ErrorCode = gjson.GetBytes(body, "0.errorCode").String()
	} else if msg := gjson.GetBytes(body, "error_description"); msg.Exists() {
		apiErr.Message = msg.String()
		apiErr.ErrorCode = gjson.GetBytes(body, "error").String()
	}

	return apiErr
}

func categorize(statusCode int) Category {
	switch statusCode {
	case 401:
		return CategoryRefreshToken
	case 429:
		return CategoryRateLimit
	case 400:
		return CategoryBadRequest
	case 404:
		return CategoryNotFound
	case 500, 502, 503, 504:
		return CategoryServerError
	default:
		return CategoryUnknown
	}
}

// DecodeError wraps a malformed payload from the platform.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decode %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("failed to decode %s", e.What)
}

func (e *DecodeError) Unwrap() error { return e.Err }
