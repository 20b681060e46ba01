package errors

import "fmt"

// Kind classifies a DomainError. Its value is reported as error_code.
type Kind string

const (
	KindParsing Kind = "DATA_CORRUPTED"
	KindStorage Kind = "STORAGE_ERROR"
)

// DomainError carries a failure from the dataset or storage layers up to
// the HTTP error handler without those layers knowing about HTTP.
type DomainError struct {
	Kind   Kind
	Op     string
	Err    error
	Fields map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// With records a field that is echoed in the problem response.
func (e *DomainError) With(key string, value interface{}) *DomainError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// Parsing wraps a dataset that could not be read as a table.
func Parsing(op string, err error) *DomainError {
	return &DomainError{Kind: KindParsing, Op: op, Err: err}
}

// Storage wraps a failed repository call.
func Storage(op string, err error) *DomainError {
	return &DomainError{Kind: KindStorage, Op: op, Err: err}
}
