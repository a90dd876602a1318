// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("order not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingEmail     = errors.New("missing email")
	ErrPersistence      = errors.New("persistence failure")
	ErrPaymentGateway   = errors.New("payment gateway failure")
)

// ValidationError 指出第一个缺失或非法的字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

// PersistenceError 包装存储层错误，Op 用于日志定位
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
