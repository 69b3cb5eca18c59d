package sqlrunner

import "errors"

var (
	// ErrForbiddenStatement is returned when a query contains a keyword that
	// could modify the warehouse.
	ErrForbiddenStatement = errors.New("only SELECT queries are allowed")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")
)
