package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")

	// Page pipeline failures. Both abort the affected page only.
	ErrRasterization = errors.New("rasterization error")
	ErrImageDecode   = errors.New("image decode error")

	// Conversion failures surfaced from the engine boundary.
	ErrConversionTimeout = errors.New("conversion timeout")
	ErrConversionCrash   = errors.New("conversion crash")
	ErrArtifactMissing   = errors.New("artifact missing")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether resubmitting the same work may succeed. Only timeouts
// qualify; the caller is expected to retry with a larger bound.
func Retryable(err error) bool {
	return errors.Is(err, ErrConversionTimeout)
}

// PageLocal reports whether err only invalidates a single page rather than the
// whole document.
func PageLocal(err error) bool {
	return errors.Is(err, ErrRasterization) || errors.Is(err, ErrImageDecode)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
