package db

import (
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when the requested record does not exist in
	// the query source.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when inserting a record whose id is
	// already taken.
	ErrDuplicateKey = errors.New("duplicate record id")
)

// IsNotFound reports whether the error means the record is absent.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	switch errors.Cause(err) {
	case ErrNotFound, mongo.ErrNoDocuments, pgx.ErrNoRows:
		return true
	default:
		return false
	}
}

// IsDuplicateKey reports whether the error was caused by an id collision.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	cause := errors.Cause(err)
	if cause == ErrDuplicateKey || mongo.IsDuplicateKeyError(cause) {
		return true
	}

	msg := cause.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
