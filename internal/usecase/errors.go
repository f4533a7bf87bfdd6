package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "agrimarket/internal/repository"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrProductNotActive  = errors.New("product not active")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence error")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ドライバのエラーも errors.Is で辿れるように両方包む
// デッドロックなどDBが打ち切っただけのものは ErrConflict（再試行できる）
func persistenceErr(op string, err error) error {
	if errors.Is(err, repo.ErrConcurrentUpdate) {
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrNotFound, http.StatusNotFound},
	{ErrProductNotActive, http.StatusUnprocessableEntity},
	{ErrInsufficientStock, http.StatusConflict},
	{ErrUnauthorized, http.StatusForbidden},
	{ErrInvalidTransition, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrPersistence, http.StatusInternalServerError},
}

// usecaseのエラーをHTTPのステータスに変換する
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	// デッドロックの詳細は返さない
	if errors.Is(err, repo.ErrConcurrentUpdate) {
		return &HTTPError{Status: http.StatusConflict, Message: "concurrent update, retry"}, true
	}
	for _, m := range errorStatuses {
		if !errors.Is(err, m.err) {
			continue
		}
		// DBの詳細は返さない
		if m.status == http.StatusInternalServerError {
			return &HTTPError{Status: m.status, Message: "db error"}, true
		}
		return &HTTPError{Status: m.status, Message: err.Error()}, true
	}
	return nil, false
}
