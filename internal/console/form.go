package console

import (
	"errors"
	"sync"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
)

// Result lines shown after an action.
const (
	ResultNone          = "[Result] Status message —"
	ResultCorrect       = "[Result] Correct."
	ResultIncorrect     = "[Result] Incorrect. Try again or generate a new captcha."
	ResultAssetsMissing = "[Result] Missing digit audio assets (0.wav…9.wav)."
	ResultEmptyInput    = "[Result] Please type the captcha."
	ResultNotReady      = "[Result] Generate a captcha first."
)

// Form holds what the user last typed and the result line it produced.
type Form struct {
	mu     sync.Mutex
	answer string
	result string
}

// NewForm creates an empty form.
func NewForm() *Form {
	return &Form{result: ResultNone}
}

// Set records an answer and its result.
func (f *Form) Set(answer, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answer = answer
	f.result = result
}

// Reset clears the answer and the result.
func (f *Form) Reset() {
	f.Set("", ResultNone)
}

// Answer returns the last answer typed.
func (f *Form) Answer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answer
}

// Result returns the current result line.
func (f *Form) Result() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// resultFor maps a session error to its result line.
func resultFor(err error) (string, bool) {
	switch {
	case errors.Is(err, captcha.ErrAssetsMissing):
		return ResultAssetsMissing, true
	case errors.Is(err, captcha.ErrEmptyInput):
		return ResultEmptyInput, true
	case errors.Is(err, captcha.ErrNotReady):
		return ResultNotReady, true
	default:
		return "", false
	}
}
