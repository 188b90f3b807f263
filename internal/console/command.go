package console

import (
	"context"
	"io"
)

// Command defines the interface for console commands.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Execute(ctx context.Context, args []string, out io.Writer) error
}
