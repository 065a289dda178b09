package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

var errBadPassword = errors.New("access denied for user")

func isBadPassword(err error) bool { return errors.Is(err, errBadPassword) }

func TestDBErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		err  *DBError
		want string
	}{
		{DatabaseError("disk full"), "Database error: disk full"},
		{ConnectionError("refused", cause), "Database connection error: refused"},
		{ConnectionTimeout(cause), "Database connection timeout"},
		{AuthFailed(cause), "Database auth failed"},
		{QueryError("syntax", cause), "Database query error: syntax"},
		{TransactionError("rolled back"), "Database transaction error: rolled back"},
		{UnderlyingError(cause), "Driver error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDBErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := fmt.Errorf("opening: %w", AuthFailed(cause))

	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.False(t, errors.Is(err, ErrConnectionTimeout))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsAuthFailed(err))
	assert.False(t, IsConnectionTimeout(err))

	var dbErr *DBError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, KindAuthFailed, dbErr.Kind)
}

func TestClassifyConnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"auth", fmt.Errorf("dial: %w", errBadPassword), KindAuthFailed},
		{"deadline", context.DeadlineExceeded, KindConnectionTimeout},
		{"dial timeout", &net.OpError{Op: "dial", Err: timeoutErr{}}, KindConnectionTimeout},
		{"refused", errors.New("connection refused"), KindConnection},
		{"already classified", QueryError("x", nil), KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyConnectError(tt.err, isBadPassword)

			var dbErr *DBError
			require.True(t, errors.As(err, &dbErr))
			assert.Equal(t, tt.want, dbErr.Kind)
			assert.NotEmpty(t, dbErr.Error())
		})
	}

	assert.NoError(t, ClassifyConnectError(nil, isBadPassword))
}

func TestClassifyConnectErrorAuthBeforeTimeout(t *testing.T) {
	// an auth failure that also looks like a timeout is still an auth failure
	err := ClassifyConnectError(fmt.Errorf("%w: %w", errBadPassword, context.DeadlineExceeded), isBadPassword)
	assert.True(t, IsAuthFailed(err))
}

func TestClassifyConnectErrorKeepsCauseText(t *testing.T) {
	err := ClassifyConnectError(errors.New("no such host"), nil)
	assert.Equal(t, "Database connection error: no such host", err.Error())
}

func TestClassifyQueryError(t *testing.T) {
	stmtErr := errors.New("Table 'shop.nope' doesn't exist")
	isStmt := func(err error) bool { return errors.Is(err, stmtErr) }

	err := ClassifyQueryError(stmtErr, isStmt)
	assert.True(t, errors.Is(err, ErrQuery))

	err = ClassifyQueryError(errors.New("bad connection"), isStmt)
	assert.True(t, errors.Is(err, ErrUnderlying))

	err = ClassifyQueryError(ConnectionTimeout(context.DeadlineExceeded), isStmt)
	assert.True(t, IsConnectionTimeout(err))

	assert.NoError(t, ClassifyQueryError(nil, isStmt))
}
