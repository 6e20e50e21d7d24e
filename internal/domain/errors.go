package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("entity does not exist")
	ErrMalformed            = errors.New("malformed message")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrAlreadyProcessed     = errors.New("subscription already processed")
	ErrInvalidCriteria      = errors.New("invalid criteria")
)

// NotFoundError names the entity that could not be found.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v does not exist", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// MalformedError describes input that cannot become valid on retry.
type MalformedError struct {
	What   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s: %s", e.What, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

func Malformed(what, format string, args ...any) error {
	return &MalformedError{What: what, Reason: fmt.Sprintf(format, args...)}
}
