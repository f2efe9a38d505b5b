package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gqlbridge/internal/querygql"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/statement"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Params []string
}

// TranslateResult is the native form of one query.
type TranslateResult struct {
	SQL           string   `json:"sql"`
	GQL           string   `json:"gql,omitempty"`
	NeedsFallback bool     `json:"needs_fallback"`
	Degraded      bool     `json:"degraded"`
	BaseQuery     string   `json:"base_query,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (r TranslateResult) String() string {
	var b strings.Builder
	if r.GQL != "" {
		fmt.Fprintf(&b, "gql: %s\n", r.GQL)
	}
	if r.NeedsFallback {
		fmt.Fprintf(&b, "local evaluation over: %s\n", r.BaseQuery)
	}
	if r.Degraded {
		b.WriteString("projection widened to SELECT *; columns are re-projected locally\n")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <statement>",
		Short: "Print the native GQL for a query",
		Long: `Translate a SELECT statement to native GQL without contacting the store.

Reports whether the query would be evaluated locally, and over which
base query.

Examples:
  gqlbridge translate "SELECT name FROM users WHERE age > 15"
  gqlbridge translate "SELECT * FROM users WHERE name = :name" --param name="'A'"
  gqlbridge translate "SELECT COUNT(*) FROM users" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "bind a parameter as name=literal (repeatable)")

	return cmd
}

func runTranslate(opts *TranslateOptions, text string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	params, err := parseParams(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid parameter", err)
	}
	result, err := translateStatement(text, params)
	if err != nil {
		if werr := f.Error("PROGRAMMING_ERROR", err.Error(), nil); werr != nil {
			return werr
		}
		return WrapExitError(ExitFailure, "translation failed", err)
	}
	return f.Success(result)
}

// translateStatement translates the query part of a statement. Writes have
// no GQL form.
func translateStatement(text string, params map[string]any) (*TranslateResult, error) {
	bound, err := statement.Bind(text, params)
	if err != nil {
		return nil, err
	}
	stmt, err := statement.Classify(bound)
	if err != nil {
		return nil, err
	}

	tr := querygql.NewTranslator()
	switch s := stmt.(type) {
	case *queryir.Select:
		out, err := tr.Translate(s)
		if err != nil {
			return nil, err
		}
		return translationResult(bound, out), nil

	case *queryir.Aggregate:
		if s.Inner == nil || s.Inner.Kind == "" {
			return &TranslateResult{SQL: bound, Warnings: []string{"aggregation without a kind is computed locally"}}, nil
		}
		out, err := tr.TranslateAggregate(s)
		if err != nil {
			return nil, err
		}
		res := translationResult(bound, out.Inner)
		res.GQL = out.GQL
		return res, nil

	case *queryir.Derived:
		out, err := tr.Translate(s.Inner)
		if err != nil {
			return nil, err
		}
		res := translationResult(bound, out)
		res.Warnings = append(res.Warnings, "the outer query is evaluated locally over the inner rows")
		return res, nil
	}
	return nil, fmt.Errorf("%T statements have no GQL form", stmt)
}

func translationResult(sql string, tr *querygql.Translation) *TranslateResult {
	res := &TranslateResult{
		SQL:           sql,
		NeedsFallback: tr.NeedsFallback,
		Degraded:      tr.Degraded,
		Warnings:      tr.Warnings,
	}
	if tr.NeedsFallback {
		res.BaseQuery = tr.BaseQuery
	} else {
		res.GQL = tr.GQL
	}
	return res
}

// parseParams reads name=literal pairs. Literals use statement syntax, so
// strings need quotes; an unquoted word is taken as text.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, lit, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: expected name=value", pair)
		}
		v, err := statement.ParseLiteral(lit)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[strings.TrimPrefix(name, ":")] = v
	}
	return params, nil
}
