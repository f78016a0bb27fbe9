package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL SQLSTATE codes the repositories translate
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}
