package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
	"github.com/Raikerian/go-audio-captcha/internal/effects"
)

// NewCaptchaCommand generates a token and plays it.
type NewCaptchaCommand struct {
	session *captcha.Session
	form    *Form
	reveal  bool
}

// NewNewCaptchaCommand creates a new NewCaptchaCommand instance.
func NewNewCaptchaCommand(s *captcha.Session, form *Form, cfg *config.Config) *NewCaptchaCommand {
	return &NewCaptchaCommand{session: s, form: form, reveal: cfg.Console.RevealToken}
}

func (c *NewCaptchaCommand) Name() string        { return "new" }
func (c *NewCaptchaCommand) Description() string { return "Generates a new captcha and plays it" }
func (c *NewCaptchaCommand) Usage() string       { return "new [digits]" }

// Execute generates a token of the requested length, up to
// captcha.MaxTokenLength digits.
func (c *NewCaptchaCommand) Execute(_ context.Context, args []string, out io.Writer) error {
	length := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 || n > captcha.MaxTokenLength {
			fmt.Fprintf(out, "Usage: %s\n", c.Usage())
			return nil
		}
		length = n
	}

	if err := c.session.Generate(length); err != nil {
		line, ok := resultFor(err)
		if !ok {
			return err
		}
		c.form.Set("", line)
		fmt.Fprintln(out, line)
		fmt.Fprintln(out, "Status: Cannot generate captcha (sound assets missing).")
		return nil
	}

	c.form.Reset()
	fmt.Fprintf(out, "Status: New captcha generated. (%d digits)\n", c.session.TokenLength())
	if c.reveal {
		fmt.Fprintf(out, "Captcha token (for dev): %s\n", c.session.Token())
	}
	return nil
}

// PlayCommand replays the current token with fresh scrambling.
type PlayCommand struct {
	session *captcha.Session
	form    *Form
}

// NewPlayCommand creates a new PlayCommand instance.
func NewPlayCommand(s *captcha.Session, form *Form) *PlayCommand {
	return &PlayCommand{session: s, form: form}
}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Plays the captcha again, scrambled differently" }
func (c *PlayCommand) Usage() string       { return "play" }

func (c *PlayCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	if err := c.session.Play(); err != nil {
		line, ok := resultFor(err)
		if !ok {
			return err
		}
		c.form.Set(c.form.Answer(), line)
		fmt.Fprintln(out, line)
		fmt.Fprintln(out, "Status: Play blocked (no captcha).")
	}
	return nil
}

// StopCommand stops playback.
type StopCommand struct {
	session *captcha.Session
}

// NewStopCommand creates a new StopCommand instance.
func NewStopCommand(s *captcha.Session) *StopCommand {
	return &StopCommand{session: s}
}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stops playback" }
func (c *StopCommand) Usage() string       { return "stop" }

func (c *StopCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	c.session.Stop()
	fmt.Fprintln(out, "Status: Stop captcha.")
	return nil
}

// SubmitCommand checks an answer.
type SubmitCommand struct {
	session *captcha.Session
	form    *Form
}

// NewSubmitCommand creates a new SubmitCommand instance.
func NewSubmitCommand(s *captcha.Session, form *Form) *SubmitCommand {
	return &SubmitCommand{session: s, form: form}
}

func (c *SubmitCommand) Name() string        { return "submit" }
func (c *SubmitCommand) Description() string { return "Checks your answer; spaces are ignored" }
func (c *SubmitCommand) Usage() string       { return "submit <digits>" }

func (c *SubmitCommand) Execute(_ context.Context, args []string, out io.Writer) error {
	answer := strings.Join(args, " ")

	verdict, err := c.session.Submit(answer)
	if err != nil {
		line, ok := resultFor(err)
		if !ok {
			return err
		}
		c.form.Set(answer, line)
		fmt.Fprintln(out, line)
		if errors.Is(err, captcha.ErrEmptyInput) {
			fmt.Fprintln(out, "Status: Empty input.")
		} else {
			fmt.Fprintln(out, "Status: No captcha generated.")
		}
		return nil
	}

	if verdict == captcha.Correct {
		c.form.Set(answer, ResultCorrect)
		fmt.Fprintln(out, ResultCorrect)
		fmt.Fprintln(out, "Status: Captcha solved.")
		return nil
	}

	c.form.Set(answer, ResultIncorrect)
	fmt.Fprintln(out, ResultIncorrect)
	fmt.Fprintln(out, "Status: Incorrect captcha.")
	return nil
}

// ClearCommand resets the answer and result without touching the session.
type ClearCommand struct {
	form *Form
}

// NewClearCommand creates a new ClearCommand instance.
func NewClearCommand(form *Form) *ClearCommand {
	return &ClearCommand{form: form}
}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Clears your answer and the result" }
func (c *ClearCommand) Usage() string       { return "clear" }

func (c *ClearCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	c.form.Reset()
	fmt.Fprintln(out, ResultNone)
	fmt.Fprintln(out, "Status: Cleared input.")
	return nil
}

// StatusCommand prints the session state.
type StatusCommand struct {
	session *captcha.Session
	form    *Form
}

// NewStatusCommand creates a new StatusCommand instance.
func NewStatusCommand(s *captcha.Session, form *Form) *StatusCommand {
	return &StatusCommand{session: s, form: form}
}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the captcha state" }
func (c *StatusCommand) Usage() string       { return "status" }

func (c *StatusCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	st := c.session.Status()

	fmt.Fprintf(out, "State: %s (digits: %d, passes: %d)\n", st.Label, st.TokenLength, st.Passes)
	if st.HasParams {
		fmt.Fprintf(out, "Last scramble: %s, gap=%s, rate=%.2f\n", st.Params, st.Gap, st.Rate)
	}
	fmt.Fprintln(out, c.form.Result())
	return nil
}

// LevelCommand prints the output level.
type LevelCommand struct {
	chain *effects.Chain
}

// NewLevelCommand creates a new LevelCommand instance.
func NewLevelCommand(chain *effects.Chain) *LevelCommand {
	return &LevelCommand{chain: chain}
}

func (c *LevelCommand) Name() string        { return "level" }
func (c *LevelCommand) Description() string { return "Shows the output level" }
func (c *LevelCommand) Usage() string       { return "level" }

func (c *LevelCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	tap := c.chain.Graph().Tap()
	if tap == nil {
		fmt.Fprintln(out, "Level: no tap configured (audio.tap_size is 0)")
		return nil
	}

	samples := tap.Samples(math.MaxInt)
	peak := 0.0
	for _, s := range samples {
		peak = max(peak, math.Abs(s))
	}

	fmt.Fprintf(out, "Level: rms=%.3f peak=%.3f noise=%.3f inputs=%d\n",
		tap.RMS(len(samples)), peak, c.chain.NoiseLevel(), c.chain.Inputs())
	return nil
}
