package indexbuild

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsResourceError reports whether err means the build ran out of memory or
// another server resource, so a cheaper attempt may succeed.
func IsResourceError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 53 is insufficient resources; 54000 is program limit exceeded.
		if strings.HasPrefix(pgErr.Code, "53") || pgErr.Code == "54000" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "memory required") || strings.Contains(msg, "out of memory")
}

// IsAlreadyExists reports whether err says the index is already present.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P07" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
