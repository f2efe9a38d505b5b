package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/gqlbridge/internal/engine"
)

const (
	shellPrompt         = "gqlbridge> "
	shellContinuePrompt = "       ... "
	historyFile         = ".gqlbridge_history"
)

// lineReader is the terminal surface the shell reads from.
// *liner.State implements it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive statement shell",
		Long: `Start an interactive shell on one cursor.

Statements end with ';' and may span lines. A single line without ';'
runs as-is. Shell commands:
  \gql <text>        run native GQL
  \translate <sql>   print the GQL for a query
  \q                 quit`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShellCommand(rootOpts, cmd)
		},
	}
	return cmd
}

func runShellCommand(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
		if fh, err := os.Open(history); err == nil {
			_, _ = line.ReadHistory(fh)
			fh.Close()
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	fmt.Fprintf(f.Writer, "gqlbridge shell on %s (project %s). \\q to quit.\n", s.cfg.Store.BaseURL, s.cfg.Store.ProjectID)

	err = runShell(ctx, s.engine.Cursor(), line, f)

	if history != "" {
		if fh, ferr := os.Create(history); ferr == nil {
			_, _ = line.WriteHistory(fh)
			fh.Close()
		}
	}
	return err
}

// runShell reads statements from in until EOF or \q and runs each on cur.
// Statement failures are printed and do not end the session.
func runShell(ctx context.Context, cur *engine.Cursor, in lineReader, f *OutputFormatter) error {
	defer cur.Close()

	var pending []string
	for {
		prompt := shellPrompt
		if len(pending) > 0 {
			prompt = shellContinuePrompt
		}
		input, err := in.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			pending = nil
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if len(pending) == 0 && strings.HasPrefix(input, `\`) {
			in.AppendHistory(input)
			if quit := shellCommand(ctx, cur, input, f); quit {
				return nil
			}
			continue
		}

		pending = append(pending, input)
		if len(pending) > 1 && !strings.HasSuffix(input, ";") {
			continue
		}
		if len(pending) == 1 && !strings.HasSuffix(input, ";") && openStatement(input) {
			continue
		}
		text := strings.TrimSuffix(strings.Join(pending, " "), ";")
		pending = nil
		in.AppendHistory(text + ";")
		runShellStatement(ctx, cur, text, false, f)
	}
}

// openStatement reports whether a first line looks unfinished: an unclosed
// parenthesis or quote.
func openStatement(line string) bool {
	depth := 0
	quote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth > 0 || quote != 0
}

// shellCommand runs a backslash command and reports whether to quit.
func shellCommand(ctx context.Context, cur *engine.Cursor, input string, f *OutputFormatter) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSuffix(strings.TrimSpace(arg), ";")
	switch name {
	case `\q`, `\quit`:
		return true
	case `\gql`:
		runShellStatement(ctx, cur, arg, true, f)
	case `\translate`, `\t`:
		res, err := translateStatement(arg, nil)
		if err != nil {
			_ = f.Error("PROGRAMMING_ERROR", err.Error(), nil)
			return false
		}
		_ = f.Success(res)
	default:
		_ = f.Error("E_COMMAND", fmt.Sprintf("unknown shell command %s", name), nil)
	}
	return false
}

func runShellStatement(ctx context.Context, cur *engine.Cursor, text string, gql bool, f *OutputFormatter) {
	out, err := execute(ctx, cur, text, nil, gql)
	if err != nil {
		_ = f.StatementError(err)
		return
	}
	if err := f.WriteStatement(out); err != nil {
		fmt.Fprintf(f.GetErrWriter(), "write output: %v\n", err)
	}
}
