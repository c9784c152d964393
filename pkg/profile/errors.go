package profile

import (
	"fmt"
	"path/filepath"
)

// ValidationError reports an invalid profile field.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", filepath.Base(e.File), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", filepath.Base(e.File), e.Field, e.Message)
}

func invalid(file, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{File: file, Field: field, Message: fmt.Sprintf(format, args...)}
}
