package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/captcha"
	"github.com/Raikerian/go-audio-captcha/internal/config"
)

// REPLParams holds dependencies for NewREPL. Input and Output default to the
// process's standard streams.
type REPLParams struct {
	fx.In

	Config  *config.Config
	Manager *CommandManager
	Session *captcha.Session
	Logger  *zap.Logger
	Input   io.Reader `name:"console_in" optional:"true"`
	Output  io.Writer `name:"console_out" optional:"true"`
}

// REPL reads commands line by line and runs them.
type REPL struct {
	manager *CommandManager
	session *captcha.Session
	logger  *zap.Logger
	prompt  string
	in      io.Reader
	out     *lockedWriter
}

// NewREPL creates a REPL.
func NewREPL(p REPLParams) *REPL {
	in, out := p.Input, p.Output
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	return &REPL{
		manager: p.Manager,
		session: p.Session,
		logger:  p.Logger,
		prompt:  p.Config.Console.Prompt,
		in:      in,
		out:     &lockedWriter{w: out},
	}
}

// Run reads commands until the input ends, "quit" is typed or ctx is done.
// It prints the playing indicator while it runs.
func (r *REPL) Run(ctx context.Context) error {
	unsubscribe := r.session.Subscribe(r.announce)
	defer unsubscribe()

	fmt.Fprintln(r.out, `Audio captcha console. Type "help" for commands.`)

	scanner := bufio.NewScanner(r.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(r.out, r.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		if err := r.manager.Dispatch(ctx, line, r.out); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

// announce prints the playing indicator when it changes.
func (r *REPL) announce(e captcha.Event) {
	switch e.Kind {
	case captcha.EventPassStarted:
		fmt.Fprintln(r.out, "\n● Playing")
	case captcha.EventPassFinished:
		if e.Outcome == captcha.OutcomeCompleted {
			fmt.Fprintf(r.out, "\n○ %s\n%s", e.Label, r.prompt)
		}
	case captcha.EventStopped:
		fmt.Fprintf(r.out, "○ %s\n", e.Label)
	}
}

// lockedWriter serialises writes from the REPL and session callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
