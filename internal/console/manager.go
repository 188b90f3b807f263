package console

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CommandManagerParams holds dependencies for NewCommandManager.
type CommandManagerParams struct {
	fx.In

	Logger   *zap.Logger
	Commands []Command `group:"commands"`
}

// CommandManager maps command names to commands.
type CommandManager struct {
	commands map[string]Command
	logger   *zap.Logger
}

// NewCommandManager creates a new CommandManager. When two commands share a
// name the first one wins. A help command listing everything is always
// available.
func NewCommandManager(p CommandManagerParams) *CommandManager {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CommandManager{
		commands: make(map[string]Command),
		logger:   logger,
	}

	for _, cmd := range p.Commands {
		if cmd == nil {
			continue
		}
		cm.add(cmd)
	}
	cm.add(&HelpCommand{manager: cm})

	logger.Debug("Console commands loaded", zap.Int("count", len(cm.commands)))
	return cm
}

func (cm *CommandManager) add(cmd Command) {
	name := cmd.Name()
	if _, exists := cm.commands[name]; exists {
		cm.logger.Warn("Duplicate command name, keeping the first one", zap.String("commandName", name))
		return
	}
	cm.commands[name] = cmd
}

// GetCommand retrieves a command by its name.
func (cm *CommandManager) GetCommand(name string) (Command, bool) {
	cmd, ok := cm.commands[name]
	return cmd, ok
}

// Commands returns every command sorted by name.
func (cm *CommandManager) Commands() []Command {
	cmds := make([]Command, 0, len(cm.commands))
	for _, cmd := range cm.commands {
		cmds = append(cmds, cmd)
	}
	slices.SortFunc(cmds, func(a, b Command) int { return strings.Compare(a.Name(), b.Name()) })
	return cmds
}

// Dispatch runs the command named by the first field of line.
func (cm *CommandManager) Dispatch(ctx context.Context, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := cm.GetCommand(strings.ToLower(fields[0]))
	if !ok {
		fmt.Fprintf(out, "Unknown command %q. Type \"help\" for a list.\n", fields[0])
		return nil
	}

	cm.logger.Debug("Executing command", zap.String("commandName", cmd.Name()))
	if err := cmd.Execute(ctx, fields[1:], out); err != nil {
		cm.logger.Error("Command failed", zap.String("commandName", cmd.Name()), zap.Error(err))
		return err
	}
	return nil
}

// HelpCommand lists the available commands.
type HelpCommand struct {
	manager *CommandManager
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Lists the available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, _ []string, out io.Writer) error {
	for _, cmd := range c.manager.Commands() {
		fmt.Fprintf(out, "  %-14s %s\n", cmd.Usage(), cmd.Description())
	}
	fmt.Fprintf(out, "  %-14s %s\n", "quit", "Leaves the console")
	return nil
}
