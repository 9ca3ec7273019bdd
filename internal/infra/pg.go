package infra

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether the error is the driver's empty-result sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
