package errors

import (
	stderrors "errors"
	"fmt"
)

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")
	ErrConfigEncode      = fmt.Errorf("failed to encode config")
	ErrConfigDirectory   = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate  = fmt.Errorf("failed to create config file")
	ErrConfigFileRename  = fmt.Errorf("failed to rename temporary config file")
	ErrConfigMarshal     = fmt.Errorf("failed to marshal config to YAML")
	ErrUnknownPipeline   = fmt.Errorf("unknown pipeline")

	// Media errors. Each one ends up as the reason of a failed outcome.
	ErrFetchFailure       = fmt.Errorf("fetch failed")
	ErrRedirectRejected   = fmt.Errorf("redirect not allowed")
	ErrEmptyContent       = fmt.Errorf("empty content")
	ErrMissingLocation    = fmt.Errorf("201 response without location header")
	ErrSizeRejected       = fmt.Errorf("image too small")
	ErrDecodeFailure      = fmt.Errorf("failed to decode image")
	ErrStorageFailure     = fmt.Errorf("failed to persist media")
	ErrAborted            = fmt.Errorf("media coordinator aborted")
	ErrTooManyRedirects   = fmt.Errorf("max redirections reached")
	ErrUnsupportedStore   = fmt.Errorf("unsupported store scheme")
	ErrInvalidStoreURI    = fmt.Errorf("invalid store URI")
	ErrStoreNotFound      = fmt.Errorf("object not found in store")
	ErrStoreNotExportable = fmt.Errorf("store is not a local filesystem")

	// Item errors.
	ErrInvalidItem = fmt.Errorf("invalid item")
	ErrInvalidURL  = fmt.Errorf("invalid URL")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing path script")
	ErrHookScript    = fmt.Errorf("path script error")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
