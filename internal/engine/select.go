package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/gqlbridge/internal/aggregate"
	"github.com/roach88/gqlbridge/internal/fallback"
	"github.com/roach88/gqlbridge/internal/materialize"
	"github.com/roach88/gqlbridge/internal/querygql"
	"github.com/roach88/gqlbridge/internal/queryir"
	"github.com/roach88/gqlbridge/internal/store"
)

// FallbackReason says why a query was evaluated locally.
type FallbackReason string

const (
	// ReasonUnsupported: the translation contains constructs the remote
	// executor does not accept, so the primary attempt is skipped.
	ReasonUnsupported FallbackReason = "unsupported_construct"

	// ReasonIndexMiss: the remote executor rejected the query for lack of
	// a composite index.
	ReasonIndexMiss FallbackReason = "index_miss"

	// ReasonRejected: the remote executor failed the query for any other
	// reason.
	ReasonRejected FallbackReason = "remote_rejected"
)

// attempt is the outcome of the primary remote execution. Exactly one of
// rows and fallback is set.
type attempt struct {
	rows     *materialize.Result
	warnings []string
	fallback *FallbackReason
	cause    error
}

// selected is a query's final rows and the warnings produced getting them.
type selected struct {
	rows     *materialize.Result
	warnings []string
}

func (e *Engine) execSelect(ctx context.Context, logger *slog.Logger, sel *queryir.Select) (*Result, error) {
	out, err := e.selectRows(ctx, logger, sel)
	if err != nil {
		return nil, err
	}
	return rowsResult(out.rows, out.warnings), nil
}

// selectRows runs sel through translation, the primary attempt and, when
// the attempt asks for it, one local fallback.
func (e *Engine) selectRows(ctx context.Context, logger *slog.Logger, sel *queryir.Select) (*selected, error) {
	tr, err := e.translator.Translate(sel)
	if err != nil {
		return nil, newError(ErrCodeProgramming, err, "translate query")
	}
	return e.runTranslation(ctx, logger, tr)
}

func (e *Engine) runTranslation(ctx context.Context, logger *slog.Logger, tr *querygql.Translation) (*selected, error) {
	logger.Debug("translated query", "kind", tr.Spec.Kind, "gql", tr.GQL, "needs_fallback", tr.NeedsFallback)

	at := e.primary(ctx, tr)
	if at.fallback == nil {
		warnings := append(append([]string(nil), tr.Warnings...), at.warnings...)
		return &selected{rows: at.rows, warnings: warnings}, nil
	}
	if at.cause != nil {
		logger.Info("remote query rejected, evaluating locally",
			"kind", tr.Spec.Kind,
			"reason", *at.fallback,
			"error", at.cause,
		)
	}
	return e.evaluateLocally(ctx, logger, tr, *at.fallback)
}

// primary runs the translated query remotely.
func (e *Engine) primary(ctx context.Context, tr *querygql.Translation) attempt {
	if tr.NeedsFallback {
		reason := ReasonUnsupported
		return attempt{fallback: &reason}
	}

	columns := tr.Output
	if tr.Degraded {
		columns = nil
	}
	qr, err := e.store.RunQuery(ctx, tr.GQL)
	if err != nil {
		reason := ReasonRejected
		if store.IsIndexMiss(err) {
			reason = ReasonIndexMiss
		}
		return attempt{fallback: &reason, cause: err}
	}
	rows, err := e.materialize.Parse(qr.Entities, columns)
	if err != nil {
		reason := ReasonRejected
		return attempt{fallback: &reason, cause: err}
	}
	if tr.Degraded {
		rows = materialize.Project(rows, tr.Output)
	}
	var warnings []string
	if qr.Truncated {
		warnings = append(warnings, truncationWarning(tr.Spec.Kind, qr.Pages))
	}
	return attempt{rows: rows, warnings: warnings}
}

// truncationWarning reports a query whose paging stopped at the page bound.
func truncationWarning(kind string, pages int) string {
	return fmt.Sprintf("scan of kind %q stopped after %d pages; results are partial", kind, pages)
}

// evaluateLocally fetches the whole kind and evaluates the query locally.
func (e *Engine) evaluateLocally(ctx context.Context, logger *slog.Logger, tr *querygql.Translation, reason FallbackReason) (*selected, error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(ErrCodeOperational, err, "query on kind %q", tr.Spec.Kind)
	}
	qr, err := e.store.RunQuery(ctx, tr.BaseQuery)
	if err != nil {
		return nil, classify(err, "fallback query on kind %q", tr.Spec.Kind)
	}
	all, err := e.materialize.Parse(qr.Entities, nil)
	if err != nil {
		return nil, newError(ErrCodeData, err, "materialize fallback results")
	}

	outcome := fallback.Apply(all, tr.Spec, tr.Output)
	e.metrics.RecordFallback(string(reason), outcome.Scanned, outcome.PredicateErrors)
	logger.Warn("query evaluated locally",
		"kind", tr.Spec.Kind,
		"reason", reason,
		"scanned", outcome.Scanned,
		"returned", len(outcome.Result.Rows),
		"predicate_errors", outcome.PredicateErrors,
	)

	warnings := append([]string(nil), tr.Warnings...)
	warnings = append(warnings, outcome.Warning+" ("+string(reason)+")")
	if qr.Truncated {
		logger.Warn("fallback scan truncated", "kind", tr.Spec.Kind, "pages", qr.Pages)
		warnings = append(warnings, truncationWarning(tr.Spec.Kind, qr.Pages))
	}
	if outcome.PredicateErrors > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d entities of kind %q were excluded because a condition could not be evaluated for them",
			outcome.PredicateErrors, tr.Spec.Kind))
	}
	return &selected{rows: outcome.Result, warnings: warnings}, nil
}

// execAggregate computes an aggregation remotely when possible, and over the
// inner query's rows otherwise.
func (e *Engine) execAggregate(ctx context.Context, logger *slog.Logger, agg *queryir.Aggregate) (*Result, error) {
	if agg.Inner == nil || agg.Inner.Kind == "" {
		rows, err := aggregate.Compute(agg.Calls, nil)
		if err != nil {
			return nil, newError(ErrCodeData, err, "aggregate")
		}
		return rowsResult(rows, nil), nil
	}

	at, err := e.translator.TranslateAggregate(agg)
	if err != nil {
		return nil, newError(ErrCodeProgramming, err, "translate aggregation")
	}

	var warnings []string
	if at.GQL != "" {
		results, err := e.store.RunAggregationQuery(ctx, at.GQL)
		if err == nil {
			rows, err := aggregate.FromRemote(agg.Calls, results, e.decoder)
			if err != nil {
				return nil, newError(ErrCodeData, err, "aggregation result")
			}
			return rowsResult(rows, at.Inner.Warnings), nil
		}
		if ctx.Err() != nil {
			return nil, classify(err, "aggregation on kind %q", agg.Inner.Kind)
		}
		logger.Info("remote aggregation rejected, computing locally",
			"kind", agg.Inner.Kind,
			"error", err,
		)
		warnings = append(warnings, fmt.Sprintf(
			"aggregation on kind %q was computed locally: %v", agg.Inner.Kind, err))
	}

	inner, err := e.runTranslation(ctx, logger, at.Inner)
	if err != nil {
		return nil, err
	}
	rows, err := aggregate.Compute(agg.Calls, inner.rows)
	if err != nil {
		return nil, newError(ErrCodeData, err, "aggregate")
	}
	return rowsResult(rows, append(warnings, inner.warnings...)), nil
}
