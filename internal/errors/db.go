package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// reKeyField extracts the column list from "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reMissingParent detects "... is not present in table ...".
	reMissingParent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// tableNames maps storage tables onto the names callers see in messages.
var tableNames = map[string]string{
	"job_metadata":     "job",
	"report_metadata":  "report",
	"workflow_runs":    "workflow run",
	"workflow_history": "workflow history",
	"api_keys":         "API key",
}

// MapDBError maps database errors to AppError instances:
//   - context deadline / cancellation → Timeout / Canceled
//   - pgx.ErrNoRows → NotFound
//   - unique violations → Conflict (with the offending field when known)
//   - foreign key violations → ForeignKey
//   - check and NOT NULL violations → Validation
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally restricted to a constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		field := uniqueViolationField(pgErr)
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists.",
			Field:   field,
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{
			Code:    ErrCodeForeignKey,
			Message: foreignKeyMessage(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field has an invalid value.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return inferFieldFromConstraint(pgErr.ConstraintName, pgErr.TableName)
}

// inferFieldFromConstraint strips the table prefix and the _key/_idx suffix
// from a constraint name: "job_metadata_idempotency_key_key" → "idempotency_key".
func inferFieldFromConstraint(constraint, table string) string {
	if constraint == "" {
		return ""
	}
	name := constraint
	if table != "" {
		name = strings.TrimPrefix(name, table+"_")
	}
	for _, suffix := range []string{"_key", "_idx", "_unique"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	if name == constraint {
		return ""
	}
	return name
}

func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if m := reMissingParent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return "The referenced " + tableDisplayName(m[1]) + " does not exist."
	}
	if pgErr.TableName != "" {
		return "This item is in use by a " + tableDisplayName(pgErr.TableName) + "."
	}
	return "Cannot complete operation because this item is in use."
}

func tableDisplayName(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := tableNames[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}
