package repository

import (
	"errors"
	"fmt"

	repo "agrimarket/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
}

// 40P01 / 40001 は repo.ErrConcurrentUpdate として返す（元のエラーも辿れる）
func translate(err error) error {
	if err == nil || errors.Is(err, repo.ErrConcurrentUpdate) || !isRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", repo.ErrConcurrentUpdate, err)
}
