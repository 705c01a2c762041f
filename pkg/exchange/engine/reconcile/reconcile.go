// Package reconcile turns loosely-typed input records into validated records of a schema.
//
// Reconciliation is a pure function of (descriptor, record): unknown keys are dropped, required
// columns that are absent are reported, and every present value is coerced to its declared type
// through a fixed table keyed by (declared type, runtime shape). All problems of a record are
// reported together in one ValidationError.
package reconcile

import (
	"strings"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
)

// ValidationError lists everything wrong with one record.
type ValidationError struct {
	// MissingFields are the absent required columns, in descriptor order.
	MissingFields []string
	// TypeErrors are "<column>: Value '<v>' is not of type <type>" messages, in descriptor order.
	TypeErrors []string
}

// Error joins the problems with "; ", missing fields first.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.TypeErrors)+1)
	if len(e.MissingFields) > 0 {
		parts = append(parts, "Missing required fields: "+strings.Join(e.MissingFields, ", "))
	}
	parts = append(parts, e.TypeErrors...)
	return strings.Join(parts, "; ")
}

// Is matches exception.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == exception.ErrValidation
}

// Reconciler reconciles records against descriptors. Naive timestamps are read in its location.
type Reconciler struct {
	loc *time.Location
}

// New creates a Reconciler. A nil location means UTC.
func New(loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{loc: loc}
}

var defaultReconciler = New(time.UTC)

// Reconcile reconciles rec against d using UTC for naive timestamps.
func Reconcile(d *schema.Descriptor, rec map[string]interface{}) (schema.Record, error) {
	return defaultReconciler.Reconcile(d, rec)
}

// Reconcile validates rec against d. On success the returned record holds only descriptor
// columns with values of the declared Go types (int64, float64, string, time.Time) or nil for
// explicitly-null nullable columns. An absent primary key is left for the store to assign; an
// explicit null one is a type error.
// The input record is never modified.
func (r *Reconciler) Reconcile(d *schema.Descriptor, rec map[string]interface{}) (schema.Record, error) {
	out := make(schema.Record, len(rec))
	var verr ValidationError

	for _, col := range d.Columns() {
		v, present := rec[col.Name]
		if !present {
			if col.Required() {
				verr.MissingFields = append(verr.MissingFields, col.Name)
			}
			continue
		}

		if v == nil {
			if col.Nullable {
				out[col.Name] = nil
			} else {
				verr.TypeErrors = append(verr.TypeErrors, typeError(col, v))
			}
			continue
		}

		coerced, msg := coerce(col, v, r.loc)
		if msg != "" {
			verr.TypeErrors = append(verr.TypeErrors, msg)
			continue
		}
		out[col.Name] = coerced
	}

	if len(verr.MissingFields) > 0 || len(verr.TypeErrors) > 0 {
		return nil, &verr
	}
	return out, nil
}
