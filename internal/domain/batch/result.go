// Package batch holds per-document outcomes of a bulk upload.
package batch

// ItemStatus is the indexing outcome of a single document.
type ItemStatus string

// Item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of uploading one document.
type Result struct {
	key    string
	status ItemStatus
	err    error
}

// NewOK creates a successful result.
func NewOK(key string) Result { return Result{key: key, status: StatusOK} }

// NewError creates a failed result.
func NewError(key string, err error) Result { return Result{key: key, status: StatusError, err: err} }

// Key returns the document key.
func (r Result) Key() string { return r.key }

// Status returns the indexing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Failed returns the keys and error messages of every failed result, in order.
func Failed(results []Result) (keys, messages []string) {
	for _, r := range results {
		if r.status != StatusError {
			continue
		}
		keys = append(keys, r.key)
		msg := ""
		if r.err != nil {
			msg = r.err.Error()
		}
		messages = append(messages, msg)
	}
	return keys, messages
}

// Succeeded counts successful results.
func Succeeded(results []Result) int {
	n := 0
	for _, r := range results {
		if r.status == StatusOK {
			n++
		}
	}
	return n
}
