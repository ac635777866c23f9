package watch

import (
	"errors"
	"fmt"
)

// ErrNotFound 表示监控命令不存在。
var ErrNotFound = errors.New("watch not found")

// ValidationError 描述非法的用户输入。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
