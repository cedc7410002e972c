package scraper

import (
	"errors"
	"fmt"
)

// ErrCategoryNotFound indicates the target category does not exist or has no
// source URL. It is a precondition failure reported to the caller; the run is
// not retried and no navigation is attempted.
var ErrCategoryNotFound = errors.New("category not found")

// ErrRendererDisabled indicates rendering has been disabled via configuration.
var ErrRendererDisabled = errors.New("renderer disabled")

// NavigationError wraps a hard navigation failure (site unreachable, browser
// crash). Soft readiness timeouts are not escalated to NavigationError; the
// run proceeds with whatever rendered.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigationError reports whether err is (or wraps) a NavigationError.
func IsNavigationError(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}
