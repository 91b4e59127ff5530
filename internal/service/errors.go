package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"coreshare-backend/internal/repository"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("conflict")
	ErrGateway         = errors.New("payment gateway error")
)

// ValidationError lists the offending request fields. It matches ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.Fields[name]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, msg string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, seen := v.fields[field]; !seen {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// notFound converts repository.ErrNotFound into ErrNotFound naming the entity.
func notFound(err error, entity string, id any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
	}
	return err
}
