// Package apperrors defines the failure taxonomy for query execution and
// the structured error surfaced to callers. Classification is a pure
// function of the error text; callers branch on the tag, never on concrete
// error types.
package apperrors

import (
	"errors"
	"regexp"
	"strings"

	"github.com/queryscope/queryscope-engine/pkg/suggest"
)

// Classification tags a query execution failure.
type Classification string

const (
	SchemaError     Classification = "schema_error"
	PermissionError Classification = "permission_error"
	ConnectionError Classification = "connection_error"
	TimeoutError    Classification = "timeout_error"
	SyntaxError     Classification = "syntax_error"
	ConstraintError Classification = "constraint_error"
	UnknownError    Classification = "unknown_error"
)

// Pattern tables for classification, checked in precedence order. Schema
// errors outrank connection errors so a stale-vocabulary failure wrapped in
// driver noise still triggers a metadata refresh.
var (
	schemaErrorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`invalid object name`),
		regexp.MustCompile(`invalid column name`),
		regexp.MustCompile(`no such table`),
		regexp.MustCompile(`no such column`),
		regexp.MustCompile(`relation .* does not exist`),
		regexp.MustCompile(`column .* does not exist`),
		regexp.MustCompile(`unknown table`),
		regexp.MustCompile(`unknown column`),
		regexp.MustCompile(`table .* not found`),
		regexp.MustCompile(`doesn't exist`),
	}

	connectionErrorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`connection lost`),
		regexp.MustCompile(`connection refused`),
		regexp.MustCompile(`connection reset`),
		regexp.MustCompile(`server has gone away`),
		regexp.MustCompile(`server gone away`),
		regexp.MustCompile(`broken pipe`),
		regexp.MustCompile(`communication link failure`),
		regexp.MustCompile(`no such host`),
		regexp.MustCompile(`network is unreachable`),
	}

	permissionErrorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`access denied`),
		regexp.MustCompile(`permission denied`),
		regexp.MustCompile(`not authorized`),
		regexp.MustCompile(`authentication failed`),
		regexp.MustCompile(`login failed`),
	}
)

// Classify maps an error to its Classification by pattern-matching the
// lower-cased error text. A nil error is UnknownError; callers should not
// classify success.
func Classify(err error) Classification {
	if err == nil {
		return UnknownError
	}
	text := strings.ToLower(err.Error())

	for _, p := range schemaErrorPatterns {
		if p.MatchString(text) {
			return SchemaError
		}
	}
	for _, p := range connectionErrorPatterns {
		if p.MatchString(text) {
			return ConnectionError
		}
	}
	for _, p := range permissionErrorPatterns {
		if p.MatchString(text) {
			return PermissionError
		}
	}

	switch {
	case strings.Contains(text, "timeout") || strings.Contains(text, "timed out"):
		return TimeoutError
	case strings.Contains(text, "syntax") || strings.Contains(text, "parse"):
		return SyntaxError
	case strings.Contains(text, "foreign key") || strings.Contains(text, "constraint"):
		return ConstraintError
	}

	return UnknownError
}

// QueryError is the structured error raised on terminal query failure. The
// Suggestions field replaces ad hoc attribute injection: it is populated by
// the retry orchestrator on exhausted schema errors and nil otherwise.
type QueryError struct {
	Classification Classification
	SQL            string
	Err            error
	Suggestions    *suggest.Response
}

func (e *QueryError) Error() string {
	msg := e.Err.Error()
	if e.Suggestions != nil && e.Suggestions.Message != "" {
		msg += "\n" + e.Suggestions.Message
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError wraps err with its classification and the SQL that failed.
func NewQueryError(err error, sqlText string) *QueryError {
	return &QueryError{
		Classification: Classify(err),
		SQL:            sqlText,
		Err:            err,
	}
}

// AsQueryError unwraps err to a *QueryError if there is one in the chain.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
