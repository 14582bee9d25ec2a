package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fallsearch/internal/compiler"
	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/search/result"
)

// Executor runs flat query strings against every registered record type and
// retries once with a rewritten query when the first pass finds nothing.
// It holds no per-call state and is safe for concurrent use.
type Executor struct {
	store    Storage
	rewriter Rewriter
	opts     Options
	observer Observer
	logger   *zap.Logger
}

// New creates a search executor. rewriter may be nil, which disables the fallback.
func New(store Storage, rewriter Rewriter, opts Options, logger *zap.Logger) *Executor {
	if opts.Policy == "" {
		opts.Policy = PolicyOverwrite
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:    store,
		rewriter: rewriter,
		opts:     opts,
		observer: NopObserver{},
		logger:   logger,
	}
}

// WithObserver sets the lifecycle observer.
func (s *Executor) WithObserver(o Observer) *Executor {
	if o != nil {
		s.observer = o
	}
	return s
}

// Policy returns the configured term policy.
func (s *Executor) Policy() TermPolicy { return s.opts.Policy }

// Search executes query and, on zero hits, rewrites it and retries exactly once.
// The target record types are resolved once and shared by both passes.
func (s *Executor) Search(ctx context.Context, query string, opts ...CallOption) (result.Outcome, error) {
	co := buildCallOptions(opts)
	if co.searchID == "" {
		co.searchID = uuid.NewString()
	}

	types, err := s.resolveTypes(ctx, co.models)
	if err != nil {
		return result.Outcome{}, err
	}

	out, err := s.pass(ctx, PassFirst, query, types, co)
	if err != nil {
		return result.Outcome{}, err
	}
	if out.Hits > 0 || co.skipRewrite || s.rewriter == nil {
		return out, nil
	}

	rewritten, err := s.rewrite(ctx, co.searchID, query)
	if err != nil {
		if s.opts.Hardened {
			s.logger.Warn("Rewrite failed, returning first pass outcome",
				zap.String("search_id", co.searchID),
				zap.Error(err),
			)
			return out, nil
		}
		return result.Outcome{}, err
	}

	co.skipRewrite = true
	retry, err := s.pass(ctx, PassRetry, rewritten, types, co)
	if err != nil {
		return result.Outcome{}, err
	}
	retry.Rewritten = &rewritten
	return retry, nil
}

// resolveTypes returns the named types in registration order, or all types when names is empty.
func (s *Executor) resolveTypes(ctx context.Context, names []string) ([]record.Type, error) {
	all, err := s.store.Types(ctx)
	if err != nil {
		return nil, fmt.Errorf("list record types: %w", err)
	}
	if len(names) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]record.Type, 0, len(names))
	for _, t := range all {
		if wanted[t.Name()] {
			out = append(out, t)
			delete(wanted, t.Name())
		}
	}
	for _, n := range names {
		if wanted[n] {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, n)
		}
	}
	return out, nil
}

func (s *Executor) pass(
	ctx context.Context, kind Pass, query string, types []record.Type, co callOptions,
) (result.Outcome, error) {
	ev := PassEvent{SearchID: co.searchID, Pass: kind, Query: query, Types: len(types)}
	s.observer.PassStarted(ctx, ev)
	start := time.Now()

	out := result.Empty()
	out.ResultClass = co.resultClass

	terms := strings.Fields(query)
	if query != compiler.Wildcard && len(terms) == 0 {
		return s.complete(ctx, ev, start, out), nil
	}

	for _, t := range types {
		var (
			matches []record.Record
			err     error
		)
		if query == compiler.Wildcard {
			matches, err = s.store.All(ctx, t)
		} else {
			matches, err = s.scanType(ctx, t, terms)
		}
		if err != nil {
			return result.Outcome{}, fmt.Errorf("scan %s: %w", t.Name(), err)
		}
		for _, m := range matches {
			out.Results = append(out.Results, result.FromRecord(m))
		}
		out.Hits += len(matches)
	}

	return s.complete(ctx, ev, start, out), nil
}

func (s *Executor) complete(ctx context.Context, ev PassEvent, start time.Time, out result.Outcome) result.Outcome {
	ev.Hits = out.Hits
	ev.Duration = time.Since(start)
	s.observer.PassCompleted(ctx, ev)
	return out
}

// scanType applies the term policy to one record type. Types without text fields match nothing.
func (s *Executor) scanType(ctx context.Context, t record.Type, terms []string) ([]record.Record, error) {
	fields := t.TextFields()
	if len(fields) == 0 {
		return nil, nil
	}

	if s.opts.Policy != PolicyConjunctive {
		// Earlier terms are superseded by the last one, so only it is evaluated.
		return s.store.Match(ctx, t, fields, terms[len(terms)-1])
	}

	candidates, err := s.store.Match(ctx, t, fields, terms[0])
	if err != nil {
		return nil, err
	}
	for _, term := range terms[1:] {
		if len(candidates) == 0 {
			break
		}
		next, err := s.store.Match(ctx, t, fields, term)
		if err != nil {
			return nil, err
		}
		candidates = intersect(candidates, next)
	}
	return candidates, nil
}

// intersect keeps records of a whose primary key appears in b, in a's order.
func intersect(a, b []record.Record) []record.Record {
	keep := make(map[string]struct{}, len(b))
	for _, r := range b {
		keep[r.PK()] = struct{}{}
	}
	out := a[:0:0]
	for _, r := range a {
		if _, ok := keep[r.PK()]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Executor) rewrite(ctx context.Context, searchID, query string) (string, error) {
	rctx := ctx
	if s.opts.RewriteTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.opts.RewriteTimeout)
		defer cancel()
	}

	start := time.Now()
	rewritten, err := s.rewriter.Rewrite(rctx, query)
	if err != nil && !errors.Is(err, domain.ErrRewriteFailed) {
		err = fmt.Errorf("%w: %w", domain.ErrRewriteFailed, err)
	}

	s.observer.RewriteInvoked(ctx, RewriteEvent{
		SearchID:  searchID,
		Original:  query,
		Rewritten: rewritten,
		Err:       err,
		Duration:  time.Since(start),
	})
	if err != nil {
		return "", err
	}
	return rewritten, nil
}
