package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeFetchFailed   = "FETCH_FAILED"
	ErrCodeNoImages      = "NO_IMAGES_FOUND"
	ErrCodeBackendFailed = "BACKEND_FAILED"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CrawlError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CrawlError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(code, message string, err error) *CrawlError {
	return &CrawlError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CrawlError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// HasCode reports whether err (or anything it wraps) is a CrawlError with the given code.
func HasCode(err error, code string) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// FetchErrorKind classifies why a page or asset fetch failed.
type FetchErrorKind string

const (
	FetchKindTimeout     FetchErrorKind = "timeout"
	FetchKindStatus      FetchErrorKind = "status"
	FetchKindContentType FetchErrorKind = "content_type"
	FetchKindNetwork     FetchErrorKind = "network"
	FetchKindBody        FetchErrorKind = "body"
)

// FetchError describes a failed HTTP GET. StatusCode is zero when no response arrived.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s (%s, HTTP %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s (%s, HTTP %d)", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s (%s)", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchKind reports whether err wraps a FetchError of the given kind.
func IsFetchKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
