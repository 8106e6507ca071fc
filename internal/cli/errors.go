package cli

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	CodeFailure = 1
	CodeUsage   = 2
)

func usageError(err error) *ExitError {
	return &ExitError{Code: CodeUsage, Message: err.Error()}
}

func failure(err error) *ExitError {
	return &ExitError{Code: CodeFailure, Message: err.Error()}
}
