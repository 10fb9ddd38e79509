package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/observability"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	uniqueViolation = "23505"

	// donationsTransactionKey names the unique constraint on donations.transaction_id.
	donationsTransactionKey = "donations_transaction_id_key"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// begin starts a traced and measured repository call. Defer the returned
// func with a pointer to the method's named error.
func begin(ctx context.Context, repo, method string) (context.Context, trace.Span, func(*error)) {
	ctx, span := otel.Tracer(repo).Start(ctx, method)
	start := time.Now()
	return ctx, span, func(errp *error) {
		observability.ObserveRepository(method, start, *errp)
		observability.EndSpan(span, *errp)
	}
}

func isUniqueViolation(err error) bool {
	_, ok := violatedConstraint(err)
	return ok
}

// violatedConstraint returns the name of the unique constraint err reports.
func violatedConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}

func notFoundOr(err error, entity, id string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return pkgerrors.NotFound(entity, id)
	}
	return err
}

// rollback undoes tx and folds a rollback failure into err.
func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return stderrors.Join(err, rbErr)
	}
	return err
}

func expectOne(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.NotFound(entity, id)
	}
	return nil
}
