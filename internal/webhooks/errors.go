package webhooks

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Store sentinels. ErrConditionFailed signals a lost race, not a fault.
var (
	ErrNotFound        = errors.New("webhooks: record not found")
	ErrAlreadyExists   = errors.New("webhooks: record already exists")
	ErrConditionFailed = errors.New("webhooks: status condition failed")
)

const (
	TextCodeValidation = "WEBHOOK_VALIDATION"
	TextCodeStorage    = "WEBHOOK_STORAGE"
	TextCodeWork       = "WEBHOOK_WORK"
	TextCodeDispatch   = "WEBHOOK_DISPATCH"
	TextCodeFault      = "WEBHOOK_FAULT"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ValidationError reports a bad origin or malformed payload. Never retried.
func ValidationError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeValidation, metadata)
}

// StorageError wraps a transient store failure
func StorageError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusInternalServerError, TextCodeStorage, metadata)
}

// WorkError wraps a failure returned by the business handler
func WorkError(source error, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryOperation, "webhooks: handler failed", http.StatusInternalServerError, TextCodeWork, metadata)
}

// DispatchError wraps a retry channel publish failure
func DispatchError(source error, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, "webhooks: retry dispatch failed", http.StatusBadGateway, TextCodeDispatch, metadata)
}

// Fault wraps an unexpected failure caught at the top of a pipeline run
func Fault(source error, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryInternal, "webhooks: unexpected fault", http.StatusInternalServerError, TextCodeFault, metadata)
}

// TextCode returns the text code of a go-errors envelope, or "" for plain errors
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	return TextCode(err) == TextCodeValidation
}
