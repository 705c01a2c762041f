// Package exception defines the error kinds raised by the exchange engine.
//
// Whole-operation failures (an oversized batch, an empty table, a malformed backup, ...) are
// reported as *ExchangeError values carrying one of the Err* kind sentinels, so callers can branch
// with errors.Is. Per-record failures never surface as operation errors; they are collected into
// the rejected side of an outcome partition instead.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Kind sentinels. Compare with errors.Is.
var (
	ErrValidation          = errors.New("ValidationError")
	ErrPersistence         = errors.New("PersistenceError")
	ErrBatchTooLarge       = errors.New("BatchTooLarge")
	ErrEmptyTable          = errors.New("EmptyTable")
	ErrEmptyBackup         = errors.New("EmptyBackup")
	ErrSchemaMismatch      = errors.New("SchemaMismatch")
	ErrMalformedBackup     = errors.New("MalformedBackup")
	ErrRestoreDeleteFailed = errors.New("RestoreDeleteFailed")
	ErrUnknownEntity       = errors.New("UnknownEntity")
	ErrInvalidRequest      = errors.New("InvalidRequest")
)

var (
	kindRegistry = make(map[string]error)
	registryMu   sync.RWMutex
)

// RegisterErrorKind registers a kind sentinel under a name.
// Panics on an empty name or a nil sentinel.
func RegisterErrorKind(name string, kind error) {
	if name == "" {
		panic("error kind name cannot be empty")
	}
	if kind == nil {
		panic(fmt.Sprintf("cannot register nil kind for name: %s", name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	kindRegistry[name] = kind
}

// LookupErrorKind returns the sentinel registered under name.
func LookupErrorKind(name string) (error, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := kindRegistry[name]
	return k, ok
}

// KindName returns the registered name of the first kind err matches, or "" if none.
// Names are checked in sorted order so the result is stable.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	registryMu.RLock()
	defer registryMu.RUnlock()

	var ee *ExchangeError
	if errors.As(err, &ee) && ee.Kind != nil {
		for name, kind := range kindRegistry {
			if kind == ee.Kind {
				return name
			}
		}
	}

	names := make([]string, 0, len(kindRegistry))
	for name := range kindRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if errors.Is(err, kindRegistry[name]) {
			return name
		}
	}
	return ""
}

func init() {
	for _, k := range []error{
		ErrValidation,
		ErrPersistence,
		ErrBatchTooLarge,
		ErrEmptyTable,
		ErrEmptyBackup,
		ErrSchemaMismatch,
		ErrMalformedBackup,
		ErrRestoreDeleteFailed,
		ErrUnknownEntity,
		ErrInvalidRequest,
	} {
		RegisterErrorKind(k.Error(), k)
	}
}

// ExchangeError is an operation-level failure.
type ExchangeError struct {
	// Module is the component that raised the error (e.g. "ingest", "exporter", "importer").
	Module string
	// Kind is one of the Err* sentinels.
	Kind error
	// Message is a short human-readable description.
	Message string
	// Details carries structured context such as counts, limits or missing columns.
	Details map[string]interface{}
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// StackTrace is captured at construction time for debugging.
	StackTrace string
}

// NewExchangeError creates an ExchangeError.
func NewExchangeError(module string, kind error, message string, originalErr error) *ExchangeError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return &ExchangeError{
		Module:      module,
		Kind:        kind,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewExchangeErrorf creates an ExchangeError with a formatted message.
// If the last argument is an error it becomes OriginalErr and is not used for formatting.
func NewExchangeErrorf(module string, kind error, format string, a ...interface{}) *ExchangeError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return NewExchangeError(module, kind, fmt.Sprintf(format, a...), originalErr)
}

// WithDetail attaches a structured detail and returns the receiver.
func (e *ExchangeError) WithDetail(key string, value interface{}) *ExchangeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error.
func (e *ExchangeError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the error's kind sentinel.
func (e *ExchangeError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// IsExchangeError reports whether err is or wraps an *ExchangeError.
func IsExchangeError(err error) bool {
	var ee *ExchangeError
	return errors.As(err, &ee)
}

// ExtractErrorMessage returns the clean Message of an ExchangeError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}

// ConstraintKind classifies the store constraint behind a PersistenceError.
type ConstraintKind string

const (
	ConstraintDuplicateKey ConstraintKind = "duplicate_key"
	ConstraintForeignKey   ConstraintKind = "foreign_key"
	ConstraintNotNull      ConstraintKind = "not_null"
	ConstraintUnknown      ConstraintKind = "unknown"
)

// PersistenceError is a per-record insert or commit failure reported by the store.
type PersistenceError struct {
	Table      string
	Constraint ConstraintKind
	Err        error
}

// NewPersistenceError wraps a store error.
func NewPersistenceError(table string, constraint ConstraintKind, err error) *PersistenceError {
	if constraint == "" {
		constraint = ConstraintUnknown
	}
	return &PersistenceError{Table: table, Constraint: constraint, Err: err}
}

// Error returns the store's own message, which is what ends up in a rejection entry.
func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("persistence failure on %s (%s)", e.Table, e.Constraint)
	}
	return strings.TrimSpace(e.Err.Error())
}

// Unwrap returns the driver error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
