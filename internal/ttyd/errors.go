package ttyd

import "fmt"

// CloseErrorKind identifies the reason a client connection is being torn
// down, mirroring the teacher's MessageError.Kind split (one enum, one
// Error() switch) rather than ad hoc error strings scattered through the
// dispatch code.
type CloseErrorKind int

const (
	ErrMissingField CloseErrorKind = iota
	ErrBlankField
	ErrUnknownService
	ErrPolicyViolation
	ErrAdmissionRefused
)

// CloseError is returned by the client state machine when a connection must
// be closed with a specific reason. Code is the websocket close code to send
// (see golang.org/x/net/websocket or gorilla/websocket's Close* constants),
// except for ErrAdmissionRefused, where Code holds an HTTP status code.
type CloseError struct {
	Kind  CloseErrorKind
	Code  int
	Field string
}

func (e *CloseError) Error() string {
	switch e.Kind {
	case ErrMissingField:
		return fmt.Sprintf("missing required field: %s", e.Field)
	case ErrBlankField:
		return fmt.Sprintf("field must not be blank: %s", e.Field)
	case ErrUnknownService:
		return fmt.Sprintf("no service registered for path: %s", e.Field)
	case ErrPolicyViolation:
		return "authentication failed"
	case ErrAdmissionRefused:
		return fmt.Sprintf("admission refused: %s", e.Field)
	default:
		return "connection closed"
	}
}

func missingFieldError(field string, code int) *CloseError {
	return &CloseError{Kind: ErrMissingField, Code: code, Field: field}
}

func blankFieldError(field string, code int) *CloseError {
	return &CloseError{Kind: ErrBlankField, Code: code, Field: field}
}

func unknownServiceError(path string, code int) *CloseError {
	return &CloseError{Kind: ErrUnknownService, Code: code, Field: path}
}

func policyViolationError(code int) *CloseError {
	return &CloseError{Kind: ErrPolicyViolation, Code: code}
}

func admissionRefusedError(reason string, code int) *CloseError {
	return &CloseError{Kind: ErrAdmissionRefused, Code: code, Field: reason}
}
