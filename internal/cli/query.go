package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/gqlbridge/internal/engine"
)

// QueryOptions holds flags for the query and exec commands.
type QueryOptions struct {
	*RootOptions
	Params []string
	GQL    bool   // run the text as native GQL
	Batch  string // YAML file with one parameter map per execution
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a query and print its rows",
		Long: `Run a statement against the configured store and print the result.

Exit codes:
  0 - Statement succeeded
  1 - Statement failed
  2 - Command error (bad config, invalid parameter)

Examples:
  gqlbridge query "SELECT name, age FROM users WHERE age > 15 ORDER BY age"
  gqlbridge query "SELECT * FROM users WHERE name = :name" -p name="'A'"
  gqlbridge query --gql "AGGREGATE COUNT(*) OVER (SELECT * FROM users)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "bind a parameter as name=literal (repeatable)")
	cmd.Flags().BoolVar(&opts.GQL, "gql", false, "run the text as native GQL without translation")

	return cmd
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <statement>",
		Short: "Run a write statement",
		Long: `Run an INSERT, UPDATE or DELETE against the configured store.

With --batch, the statement runs once per parameter map in the file and
the affected row counts are summed.

Examples:
  gqlbridge exec "INSERT INTO users (name, age) VALUES ('C', 28)"
  gqlbridge exec "UPDATE users SET age = :age WHERE id = :id" -p age=17 -p id=1
  gqlbridge exec "INSERT INTO users (name) VALUES (:name)" --batch names.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Batch != "" {
				return runBatch(opts, args[0], cmd)
			}
			return runStatement(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "bind a parameter as name=literal (repeatable)")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "YAML file holding a list of parameter maps")
	cmd.MarkFlagsMutuallyExclusive("param", "batch")

	return cmd
}

// commandContext returns the command's context, cancelled on SIGINT or
// SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func runStatement(opts *QueryOptions, text string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	params, err := parseParams(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}
	s, err := openSession(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	cur := s.engine.Cursor()
	defer cur.Close()

	out, err := execute(ctx, cur, text, params, opts.GQL)
	if err != nil {
		return f.StatementError(err)
	}
	return f.WriteStatement(out)
}

// execute runs one statement on cur and collects its outcome.
func execute(ctx context.Context, cur *engine.Cursor, text string, params map[string]any, gql bool) (*StatementOutput, error) {
	before := len(cur.Warnings())
	var err error
	if gql {
		err = cur.ExecuteGQL(ctx, text)
	} else {
		err = cur.Execute(ctx, text, params)
	}
	if err != nil {
		return nil, err
	}
	return collect(cur, before)
}

func runBatch(opts *QueryOptions, text string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	seq, err := loadBatch(opts.Batch)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid batch file", err)
	}
	f.VerboseLog("executing %d parameter sets", len(seq))

	s, err := openSession(opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	cur := s.engine.Cursor()
	defer cur.Close()

	if err := cur.ExecuteMany(ctx, text, seq); err != nil {
		return f.StatementError(err)
	}
	out, err := collect(cur, 0)
	if err != nil {
		return f.StatementError(err)
	}
	return f.WriteStatement(out)
}

// loadBatch reads a YAML list of parameter maps.
func loadBatch(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var seq []map[string]any
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("batch file %s holds no parameter sets", path)
	}
	return seq, nil
}
