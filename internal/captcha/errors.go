package captcha

// Code identifies a recoverable session condition.
type Code string

const (
	CodeAssetsMissing Code = "ASSETS_MISSING"
	CodeNotReady      Code = "NOT_READY"
	CodeEmptyInput    Code = "EMPTY_INPUT"
)

// Error definitions
var (
	ErrAssetsMissing = NewError(CodeAssetsMissing, "missing digit audio assets (0.wav…9.wav)")
	ErrNotReady      = NewError(CodeNotReady, "generate a captcha first")
	ErrEmptyInput    = NewError(CodeEmptyInput, "please type the captcha")
)

// Error is a condition reported to the user. None of them are fatal: the
// session stays usable after any of them.
type Error struct {
	Code    Code
	message string
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, message: message}
}

func (e *Error) Error() string {
	return e.message
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
