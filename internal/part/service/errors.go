package service

import (
	"errors"
	"fmt"
)

// ValidationError 业务校验错误，返回给调用方修正
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CycleError 变体树或BOM成环
type CycleError struct {
	PartID     string
	OffenderID string
	Message    string
}

func (e *CycleError) Error() string {
	return e.Message
}

// IsValidationError 是否为业务校验错误（含成环）
func IsValidationError(err error) bool {
	var ve *ValidationError
	var ce *CycleError
	return errors.As(err, &ve) || errors.As(err, &ce)
}
