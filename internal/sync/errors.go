package sync

import (
	"errors"
	"fmt"
	"regexp"
)

// Severity classifies a failed remote operation.
type Severity int

const (
	// Transient failures are retried by rescheduling the whole transaction.
	Transient Severity = iota
	// Fatal failures can never succeed; the transaction is discarded.
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "transient"
}

// fatalCodePatterns match Postgres SQLSTATE codes that retrying cannot fix:
// class 22 (data exception), class 23 (integrity constraint violation) and
// 42501 (insufficient privilege, e.g. a row-level security denial).
var fatalCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^22...$`),
	regexp.MustCompile(`^23...$`),
	regexp.MustCompile(`^42501$`),
}

// RemoteError is an error reported by the remote store for one operation.
type RemoteError struct {
	Table   string
	Code    string
	Message string
	Details string
	Hint    string
	Status  int // HTTP status when the store is reached over HTTP
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("remote %s: %s: %s", e.Table, e.Code, msg)
	}
	return fmt.Sprintf("remote %s: %s", e.Table, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ErrorCode returns the store's error code, e.g. a SQLSTATE.
func (e *RemoteError) ErrorCode() string { return e.Code }

// UnsupportedOperationError is returned for a queued op kind the uploader
// does not know how to replay.
type UnsupportedOperationError struct {
	Op OpKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation kind %q", string(e.Op))
}

type errorCoder interface{ ErrorCode() string }

// sqlStater matches driver errors such as *pgconn.PgError.
type sqlStater interface{ SQLState() string }

// errorCode extracts a string code from err. Errors without one report false.
func errorCode(err error) (string, bool) {
	var ec errorCoder
	if errors.As(err, &ec) {
		return ec.ErrorCode(), true
	}
	var ss sqlStater
	if errors.As(err, &ss) {
		return ss.SQLState(), true
	}
	return "", false
}

// IsFatalCode reports whether code matches one of the non-recoverable patterns.
func IsFatalCode(code string) bool {
	for _, re := range fatalCodePatterns {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// Classify decides whether err is worth retrying. Errors that carry no code
// are always Transient.
func Classify(err error) Severity {
	if err == nil {
		return Transient
	}
	code, ok := errorCode(err)
	if !ok || !IsFatalCode(code) {
		return Transient
	}
	return Fatal
}

// CodeOf returns the code carried by err, or "" if it has none.
func CodeOf(err error) string {
	code, _ := errorCode(err)
	return code
}
