package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the flat classification every backend error is mapped to
type ErrorKind int

const (
	KindDatabase ErrorKind = iota
	KindConnection
	KindConnectionTimeout
	KindAuthFailed
	KindQuery
	KindTransaction
	KindUnderlying
)

var kindNames = map[ErrorKind]string{
	KindDatabase:          "DatabaseError",
	KindConnection:        "ConnectionError",
	KindConnectionTimeout: "ConnectionTimeout",
	KindAuthFailed:        "AuthFailedError",
	KindQuery:             "QueryError",
	KindTransaction:       "TransactionError",
	KindUnderlying:        "UnderlyingDriverError",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// DBError is the only error type drivers return to callers
type DBError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrDatabase          = &DBError{Kind: KindDatabase}
	ErrConnection        = &DBError{Kind: KindConnection}
	ErrConnectionTimeout = &DBError{Kind: KindConnectionTimeout}
	ErrAuthFailed        = &DBError{Kind: KindAuthFailed}
	ErrQuery             = &DBError{Kind: KindQuery}
	ErrTransaction       = &DBError{Kind: KindTransaction}
	ErrUnderlying        = &DBError{Kind: KindUnderlying}
)

func (e *DBError) Error() string {
	switch e.Kind {
	case KindDatabase:
		return "Database error: " + e.Message
	case KindConnection:
		return "Database connection error: " + e.Message
	case KindConnectionTimeout:
		return "Database connection timeout"
	case KindAuthFailed:
		return "Database auth failed"
	case KindQuery:
		return "Database query error: " + e.Message
	case KindTransaction:
		return "Database transaction error: " + e.Message
	default:
		return fmt.Sprintf("Driver error: %v", e.Err)
	}
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can write errors.Is(err, driver.ErrAuthFailed)
func (e *DBError) Is(target error) bool {
	var t *DBError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// DatabaseError builds a generic backend failure
func DatabaseError(msg string) *DBError {
	return &DBError{Kind: KindDatabase, Message: msg}
}

// ConnectionError builds a session establishment failure
func ConnectionError(msg string, cause error) *DBError {
	return &DBError{Kind: KindConnection, Message: msg, Err: cause}
}

// ConnectionTimeout builds a pool acquisition timeout
func ConnectionTimeout(cause error) *DBError {
	return &DBError{Kind: KindConnectionTimeout, Err: cause}
}

// AuthFailed builds a rejected credentials error
func AuthFailed(cause error) *DBError {
	return &DBError{Kind: KindAuthFailed, Err: cause}
}

// QueryError builds a failed statement error
func QueryError(msg string, cause error) *DBError {
	return &DBError{Kind: KindQuery, Message: msg, Err: cause}
}

// TransactionError is reserved for transactional operations
func TransactionError(msg string) *DBError {
	return &DBError{Kind: KindTransaction, Message: msg}
}

// UnderlyingError wraps a lower-level error that fits no other kind
func UnderlyingError(cause error) *DBError {
	return &DBError{Kind: KindUnderlying, Err: cause}
}

// IsAuthFailed reports whether err is an authentication failure
func IsAuthFailed(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsConnectionTimeout reports whether err is a pool acquisition timeout
func IsConnectionTimeout(err error) bool {
	return errors.Is(err, ErrConnectionTimeout)
}

// AuthChecker reports whether a backend error means the credentials were rejected
type AuthChecker func(err error) bool

// IsTimeoutError reports whether err is a pool acquisition or dial timeout
func IsTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ClassifyConnectError maps an error raised while establishing a session:
// auth failure first, then acquisition timeout, then a generic connection error.
func ClassifyConnectError(err error, isAuth AuthChecker) error {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	if isAuth != nil && isAuth(err) {
		return AuthFailed(err)
	}
	if IsTimeoutError(err) {
		return ConnectionTimeout(err)
	}
	return ConnectionError(fmt.Sprintf("%v", err), err)
}

// ClassifyQueryError maps an error raised by a statement on an acquired
// connection. isStatement recognizes backend errors produced by the statement
// itself. Acquisition timeouts are classified by Acquire before this point.
func ClassifyQueryError(err error, isStatement func(error) bool) error {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	if isStatement != nil && isStatement(err) {
		return QueryError(err.Error(), err)
	}
	return UnderlyingError(err)
}
