package wire

import "errors"

// Sentinel errors returned by Parse. Wrap with fmt.Errorf("...: %w", ...)
// at call sites that need more context; callers match with errors.Is.
var (
	// ErrUnknownCommand is returned for a dot-prefixed line whose keyword
	// does not match any entry in the command table.
	ErrUnknownCommand = errors.New("wire: unknown command")

	// ErrLoginArgs is returned for `.login` invoked with the wrong number
	// of arguments.
	ErrLoginArgs = errors.New("wire: login needs two arguments")

	// ErrSignupArgs is returned for `.signup` invoked with the wrong
	// number of arguments.
	ErrSignupArgs = errors.New("wire: use .signup <username> <password>")

	// ErrPasswdArgs is returned for `.passwd` invoked with one argument
	// instead of two.
	ErrPasswdArgs = errors.New("wire: type the new password twice")

	// ErrPasswdMismatch is returned when `.passwd`'s two arguments differ.
	ErrPasswdMismatch = errors.New("wire: passwords don't match")

	// ErrFileTooLarge is returned by .file/.image when the target file
	// exceeds Parser.MaxFileSize.
	ErrFileTooLarge = errors.New("wire: file exceeds maximum size")
)

// ParseError wraps a failure to turn a command line into a Message,
// recording the offending line for diagnostics.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return "parse \"" + e.Line + "\": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
