package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrUnsupported   = errors.New("db: operation not supported")
)

// Op constants name the backend call for error context.
// Redis ops are command names; Azure ops are REST calls.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpSearch      = "FT.SEARCH"
	OpJSONSet     = "JSON.SET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpPing        = "PING"

	OpPutIndex  = "PUT /indexes"
	OpGetIndex  = "GET /indexes"
	OpIndexDocs = "POST /docs/index"
	OpQueryDocs = "POST /docs/search"
	OpStats     = "GET /servicestats"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
