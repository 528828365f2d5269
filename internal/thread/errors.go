package thread

import "fmt"

// ParseError reports bytes that are not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("thread: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError is the first invariant violation found by Validate or by a
// content edit.
type ValidationError struct {
	// Field is the offending document field, e.g. "title" or "char".
	Field   string
	Message string
	// Path locates the value inside the document, e.g. "childs[0].comments[2]".
	// Empty for thread-level fields.
	Path string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func fieldError(field, path, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg, Path: path}
}
