package dbresult

import (
	"database/sql"
	"errors"
	"strings"
)

// Kind classifies a failed Result.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindNotFound
	KindStore
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Result is the success/error envelope returned by every data operation.
// Data is only meaningful when Success is true, Error only when it is false.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"-"`
}

func Success[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Failure builds a generic store-class failure.
func Failure[T any](message string) Result[T] {
	return Result[T]{Error: message, Kind: KindStore}
}

func Validation[T any](message string) Result[T] {
	return Result[T]{Error: message, Kind: KindValidation}
}

func NotFound[T any](message string) Result[T] {
	if message == "" {
		message = "Resource not found"
	}
	return Result[T]{Error: message, Kind: KindNotFound}
}

// Forward re-types a failed result without touching its message or kind.
func Forward[U, T any](r Result[T]) Result[U] {
	return Result[U]{Error: r.Error, Kind: r.Kind}
}

// FromStore converts the outcome of a single store call. sql.ErrNoRows is
// reported as not found with the fallback message.
func FromStore[T any](data T, err error, fallback string) Result[T] {
	if err == nil {
		return Success(data)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound[T](fallback)
	}
	return Failure[T](MessageOf(err, fallback))
}

// StoreFailure is FromStore for calls that carry no data.
func StoreFailure[T any](err error, fallback string) Result[T] {
	var zero T
	return FromStore(zero, err, fallback)
}

// MessageOf extracts a human readable message from an error or a string.
// Anything else, or a blank message, yields fallback.
func MessageOf(v any, fallback string) string {
	var msg string
	switch e := v.(type) {
	case error:
		if e != nil {
			msg = e.Error()
		}
	case string:
		msg = e
	}
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}

// FormatErrorMessage renders "Unable to <operation> <resource>: <context>",
// omitting the optional parts when empty.
func FormatErrorMessage(operation, resource, context string) string {
	var b strings.Builder
	b.WriteString("Unable to ")
	b.WriteString(operation)
	if resource != "" {
		b.WriteString(" ")
		b.WriteString(resource)
	}
	if context != "" {
		b.WriteString(": ")
		b.WriteString(context)
	}
	return b.String()
}
