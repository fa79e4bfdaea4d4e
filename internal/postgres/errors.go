package postgres

import (
	"errors"

	"github.com/ariefcatur/go-stock-ledger/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// mapErr sorts driver errors into the service taxonomy. notFound is used
// when the query matched no row.
func mapErr(op string, err error, notFound func() error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound()
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperr.Conflict("%s: %s already exists", op, constraintSubject(pgErr))
		case foreignKeyViolation:
			return apperr.Conflict("%s: still referenced (%s)", op, pgErr.ConstraintName)
		case checkViolation:
			return apperr.Conflict("%s: rejected by %s", op, pgErr.ConstraintName)
		}
	}
	return apperr.Internal(op, err)
}

func constraintSubject(e *pgconn.PgError) string {
	switch e.ConstraintName {
	case "products_code_key":
		return "product code"
	case "orders_external_id_key":
		return "order external id"
	}
	return e.ConstraintName
}
