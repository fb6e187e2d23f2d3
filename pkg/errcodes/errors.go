package errcodes

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error codes shared with the UI layer.
const (
	CodeStorageError       = "storage_error"
	CodeFetchFailure       = "fetch_failure"
	CodePersistenceFailure = "persistence_failure"
	CodeMissingContent     = "missing_content"
	CodeFileNotFound       = "file_not_found"
	CodeUnsupportedFormat  = "unsupported_format"
	CodeNotFound           = "not_found"
	CodeValidationError    = "validation_error"
)

// Retry hints tell the UI which remedy applies to a failure.
const (
	RetryDownload = "download"
	RetrySave     = "save"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
	Retry    string
	Err      error
}

func (err *Error) Error() string {
	if err.Err != nil {
		return err.Message + ": " + err.Err.Error()
	}
	return err.Message
}

func (err *Error) Unwrap() error {
	return err.Err
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// HasCode reports whether err, or anything it wraps, is an *Error with code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		HTTPCode: http.StatusNotFound,
		Message:  resource + " not found.",
		Code:     CodeNotFound,
	}
}

// StorageError wraps a failed database operation.
func StorageError(err error) error {
	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Message:  "Local storage operation failed.",
		Code:     CodeStorageError,
		Err:      err,
	}
}

// FetchFailure is returned when downloading or copying book content failed.
// Nothing was persisted.
func FetchFailure(err error) error {
	return &Error{
		HTTPCode: http.StatusBadGateway,
		Message:  "Could not get the book content.",
		Code:     CodeFetchFailure,
		Retry:    RetryDownload,
		Err:      err,
	}
}

// PersistenceFailure is returned when content was fetched but the book could
// not be confirmed as saved locally.
func PersistenceFailure(err error) error {
	return &Error{
		HTTPCode: http.StatusInternalServerError,
		Message:  "Could not save the book locally.",
		Code:     CodePersistenceFailure,
		Retry:    RetrySave,
		Err:      err,
	}
}

func MissingContent(format string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  fmt.Sprintf("The %s book has no stored content.", format),
		Code:     CodeMissingContent,
	}
}

func FileNotFound(path string) error {
	return &Error{
		HTTPCode: http.StatusNotFound,
		Message:  fmt.Sprintf("The book file %q no longer exists.", path),
		Code:     CodeFileNotFound,
	}
}

func UnsupportedFormat(format string) error {
	return &Error{
		HTTPCode: http.StatusUnsupportedMediaType,
		Message:  fmt.Sprintf("Unsupported book format %q.", format),
		Code:     CodeUnsupportedFormat,
	}
}

func UnsupportedMediaType() error {
	return &Error{
		HTTPCode: http.StatusUnsupportedMediaType,
		Message:  "Unsupported Media Type",
		Code:     "unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  fmt.Sprintf("Unknown Parameter %q", param),
		Code:     "unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     CodeValidationError,
	}
}

func MalformedPayload() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Malformed Payload",
		Code:     "malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		HTTPCode: http.StatusBadRequest,
		Message:  "Request body can't be empty.",
		Code:     "empty_request_body",
	}
}

// Unauthorized is returned when the catalog backend rejected our credentials.
func Unauthorized() error {
	return &Error{
		HTTPCode: http.StatusUnauthorized,
		Message:  "The catalog session has expired. Please log in again.",
		Code:     "unauthorized",
	}
}
