package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/record"
	"github.com/kailas-cloud/fallsearch/internal/domain/record/field"
)

// --- Mocks ---

type mockStore struct {
	types      []record.Type
	records    map[string][]record.Record
	typesErr   error
	matchErr   error
	matchCalls []string
	allCalls   int
}

func (m *mockStore) Types(_ context.Context) ([]record.Type, error) {
	return m.types, m.typesErr
}

func (m *mockStore) All(_ context.Context, t record.Type) ([]record.Record, error) {
	m.allCalls++
	return m.records[t.Name()], nil
}

func (m *mockStore) Match(
	_ context.Context, t record.Type, fields []field.Field, term string,
) ([]record.Record, error) {
	m.matchCalls = append(m.matchCalls, term)
	if m.matchErr != nil {
		return nil, m.matchErr
	}
	var out []record.Record
	for _, r := range m.records[t.Name()] {
		if r.MatchesAny(fields, term) {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockRewriter struct {
	out    string
	err    error
	block  bool
	calls  int
	inputs []string
}

func (m *mockRewriter) Rewrite(ctx context.Context, q string) (string, error) {
	m.calls++
	m.inputs = append(m.inputs, q)
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.out, m.err
}

type recordingObserver struct {
	started   []Pass
	completed []PassEvent
	rewrites  []RewriteEvent
}

func (o *recordingObserver) PassStarted(_ context.Context, ev PassEvent) {
	o.started = append(o.started, ev.Pass)
}

func (o *recordingObserver) RewriteInvoked(_ context.Context, ev RewriteEvent) {
	o.rewrites = append(o.rewrites, ev)
}

func (o *recordingObserver) PassCompleted(_ context.Context, ev PassEvent) {
	o.completed = append(o.completed, ev)
}

func articleStore(t *testing.T) *mockStore {
	t.Helper()
	article, err := record.NewType("article", []field.Field{
		field.Reconstruct("title", field.Text),
		field.Reconstruct("views", field.Numeric),
	})
	if err != nil {
		t.Fatalf("NewType: %v", err)
	}
	counter, err := record.NewType("counter", []field.Field{
		field.Reconstruct("value", field.Numeric),
	})
	if err != nil {
		t.Fatalf("NewType: %v", err)
	}
	return &mockStore{
		types: []record.Type{article, counter},
		records: map[string][]record.Record{
			"article": {
				record.New("article", "1", map[string]any{"title": "Rust guide", "views": 10}),
				record.New("article", "2", map[string]any{"title": "Go tutorial", "views": 5}),
			},
			"counter": {
				record.New("counter", "c1", map[string]any{"value": 7}),
			},
		},
	}
}

func newExecutor(store Storage, rw Rewriter, opts Options) (*Executor, *recordingObserver) {
	obs := &recordingObserver{}
	return New(store, rw, opts, nil).WithObserver(obs), obs
}

// --- Tests ---

func TestSearch_FirstPassHit_NoRewrite(t *testing.T) {
	rw := &mockRewriter{out: "ignored"}
	exec, obs := newExecutor(articleStore(t), rw, DefaultOptions())

	out, err := exec.Search(context.Background(), "rust")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 1 || len(out.Results) != 1 {
		t.Fatalf("expected 1 hit, got %d (%d results)", out.Hits, len(out.Results))
	}
	if out.Results[0].PK() != "1" || out.Results[0].TypeName() != "article" {
		t.Errorf("unexpected result: %s/%s", out.Results[0].TypeName(), out.Results[0].PK())
	}
	if out.Results[0].Score() != 0 {
		t.Errorf("score must be 0, got %v", out.Results[0].Score())
	}
	if rw.calls != 0 {
		t.Errorf("rewrite must not be called on hits, got %d calls", rw.calls)
	}
	if out.Rewritten != nil {
		t.Error("Rewritten must be nil when no fallback ran")
	}
	if len(obs.started) != 1 || obs.started[0] != PassFirst {
		t.Errorf("expected a single first pass, got %v", obs.started)
	}
}

func TestSearch_FallbackTranslatesAndRetries(t *testing.T) {
	rw := &mockRewriter{out: "rust"}
	exec, obs := newExecutor(articleStore(t), rw, DefaultOptions())

	out, err := exec.Search(context.Background(), "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 1 || out.Results[0].PK() != "1" {
		t.Fatalf("expected retry to find pk 1, got %d hits", out.Hits)
	}
	if rw.calls != 1 || rw.inputs[0] != "python" {
		t.Errorf("expected one rewrite of the original query, got %v", rw.inputs)
	}
	if out.Rewritten == nil || *out.Rewritten != "rust" {
		t.Errorf("expected Rewritten=rust, got %v", out.Rewritten)
	}
	if len(obs.started) != 2 || obs.started[1] != PassRetry {
		t.Errorf("expected first+retry passes, got %v", obs.started)
	}
	if len(obs.rewrites) != 1 || obs.rewrites[0].Original != "python" || obs.rewrites[0].Rewritten != "rust" {
		t.Errorf("unexpected rewrite events: %+v", obs.rewrites)
	}
	if obs.completed[0].Hits != 0 || obs.completed[1].Hits != 1 {
		t.Errorf("unexpected per-pass hits: %+v", obs.completed)
	}
	if obs.completed[0].SearchID == "" || obs.completed[0].SearchID != obs.completed[1].SearchID {
		t.Error("both passes must share one search id")
	}
}

func TestSearch_RetryZeroHits_NoSecondRewrite(t *testing.T) {
	for _, rewritten := range []string{"python", "", "haskell"} {
		t.Run("rewritten="+rewritten, func(t *testing.T) {
			rw := &mockRewriter{out: rewritten}
			exec, obs := newExecutor(articleStore(t), rw, DefaultOptions())

			out, err := exec.Search(context.Background(), "python")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Hits != 0 || len(out.Results) != 0 {
				t.Errorf("expected 0 hits, got %d", out.Hits)
			}
			if rw.calls != 1 {
				t.Errorf("expected exactly one rewrite, got %d", rw.calls)
			}
			if len(obs.started) != 2 {
				t.Errorf("expected exactly two passes, got %v", obs.started)
			}
		})
	}
}

func TestSearch_EmptyQuery_OneRewriteAttempt(t *testing.T) {
	store := articleStore(t)
	rw := &mockRewriter{out: ""}
	exec, _ := newExecutor(store, rw, DefaultOptions())

	out, err := exec.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 0 {
		t.Errorf("expected 0 hits, got %d", out.Hits)
	}
	if rw.calls != 1 {
		t.Errorf("expected one rewrite attempt, got %d", rw.calls)
	}
	if len(store.matchCalls) != 0 || store.allCalls != 0 {
		t.Error("empty query must not scan storage")
	}
}

func TestSearch_Wildcard_ReturnsEverything(t *testing.T) {
	store := articleStore(t)
	rw := &mockRewriter{}
	exec, _ := newExecutor(store, rw, DefaultOptions())

	out, err := exec.Search(context.Background(), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 3 || len(out.Results) != 3 {
		t.Fatalf("expected all 3 records, got %d", out.Hits)
	}
	// registration order, then storage order
	wantPKs := []string{"1", "2", "c1"}
	for i, pk := range wantPKs {
		if out.Results[i].PK() != pk {
			t.Errorf("result %d: got pk %s, want %s", i, out.Results[i].PK(), pk)
		}
	}
	if rw.calls != 0 {
		t.Error("wildcard hits must not trigger rewrite")
	}
}

func TestSearch_WildcardOnlyWhenWholeQuery(t *testing.T) {
	store := articleStore(t)
	exec, _ := newExecutor(store, nil, DefaultOptions())

	out, err := exec.Search(context.Background(), "rust *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.allCalls != 0 {
		t.Error("embedded * must not expand to match-all")
	}
	if out.Hits != 0 {
		t.Errorf("overwrite policy keeps the last term (*), got %d hits", out.Hits)
	}
}

func TestSearch_TypesWithoutTextFieldsContributeNothing(t *testing.T) {
	store := articleStore(t)
	exec, _ := newExecutor(store, nil, DefaultOptions())

	if _, err := exec.Search(context.Background(), "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// only the article type has a text field
	if len(store.matchCalls) != 1 {
		t.Errorf("expected one Match call, got %d", len(store.matchCalls))
	}
}

func TestSearch_OverwritePolicy_LastTermWins(t *testing.T) {
	store := articleStore(t)
	exec, _ := newExecutor(store, nil, Options{Policy: PolicyOverwrite})

	out, err := exec.Search(context.Background(), "rust tutorial")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 1 || out.Results[0].PK() != "2" {
		t.Errorf("expected only pk 2 (last term), got %d hits", out.Hits)
	}
}

func TestSearch_ConjunctivePolicy(t *testing.T) {
	store := articleStore(t)
	exec, _ := newExecutor(store, nil, Options{Policy: PolicyConjunctive})

	out, err := exec.Search(context.Background(), "rust tutorial")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 0 {
		t.Errorf("no record has both terms, got %d hits", out.Hits)
	}

	out, err = exec.Search(context.Background(), "RUST guide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 1 || out.Results[0].PK() != "1" {
		t.Errorf("expected pk 1, got %d hits", out.Hits)
	}
}

func TestSearch_WithModels(t *testing.T) {
	store := articleStore(t)
	exec, _ := newExecutor(store, nil, DefaultOptions())

	out, err := exec.Search(context.Background(), "*", WithModels("counter"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 1 || out.Results[0].TypeName() != "counter" {
		t.Errorf("expected only counter records, got %d", out.Hits)
	}

	_, err = exec.Search(context.Background(), "*", WithModels("missing"))
	if !errors.Is(err, domain.ErrUnknownRecordType) {
		t.Errorf("expected ErrUnknownRecordType, got %v", err)
	}
}

func TestSearch_ResultClassEchoed(t *testing.T) {
	exec, _ := newExecutor(articleStore(t), nil, DefaultOptions())
	out, err := exec.Search(context.Background(), "go", WithResultClass("compact"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ResultClass != "compact" {
		t.Errorf("got %q", out.ResultClass)
	}
}

func TestSearch_SkipRewrite(t *testing.T) {
	rw := &mockRewriter{out: "rust"}
	exec, _ := newExecutor(articleStore(t), rw, DefaultOptions())

	out, err := exec.Search(context.Background(), "python", SkipRewrite())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 0 || rw.calls != 0 {
		t.Errorf("expected no fallback, got %d hits and %d rewrites", out.Hits, rw.calls)
	}
}

func TestSearch_RewriteError_Hardened(t *testing.T) {
	rw := &mockRewriter{err: errors.New("provider down")}
	exec, obs := newExecutor(articleStore(t), rw, Options{Hardened: true})

	out, err := exec.Search(context.Background(), "python")
	if err != nil {
		t.Fatalf("hardened mode must swallow rewrite errors, got %v", err)
	}
	if out.Hits != 0 || out.Results == nil {
		t.Errorf("expected first pass zero-hit outcome, got %+v", out)
	}
	if len(obs.started) != 1 {
		t.Errorf("retry must be skipped, got passes %v", obs.started)
	}
	if len(obs.rewrites) != 1 || !errors.Is(obs.rewrites[0].Err, domain.ErrRewriteFailed) {
		t.Errorf("expected failed rewrite event, got %+v", obs.rewrites)
	}
}

func TestSearch_RewriteError_Strict(t *testing.T) {
	cause := errors.New("provider down")
	rw := &mockRewriter{err: cause}
	exec, _ := newExecutor(articleStore(t), rw, Options{Hardened: false})

	_, err := exec.Search(context.Background(), "python")
	if !errors.Is(err, domain.ErrRewriteFailed) || !errors.Is(err, cause) {
		t.Errorf("expected wrapped ErrRewriteFailed, got %v", err)
	}
}

func TestSearch_RewriteTimeout(t *testing.T) {
	rw := &mockRewriter{block: true}
	exec, _ := newExecutor(articleStore(t), rw, Options{
		Hardened:       false,
		RewriteTimeout: 10 * time.Millisecond,
	})

	_, err := exec.Search(context.Background(), "python")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSearch_NilRewriterDisablesFallback(t *testing.T) {
	exec, obs := newExecutor(articleStore(t), nil, DefaultOptions())
	out, err := exec.Search(context.Background(), "python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hits != 0 || len(obs.started) != 1 {
		t.Errorf("expected single zero-hit pass, got %d hits, passes %v", out.Hits, obs.started)
	}
}

func TestSearch_StorageErrorsPropagate(t *testing.T) {
	store := articleStore(t)
	store.matchErr = errors.New("connection reset")
	exec, _ := newExecutor(store, &mockRewriter{}, DefaultOptions())

	if _, err := exec.Search(context.Background(), "rust"); err == nil {
		t.Error("expected scan error")
	}

	store = articleStore(t)
	store.typesErr = errors.New("boom")
	exec, _ = newExecutor(store, &mockRewriter{}, DefaultOptions())
	if _, err := exec.Search(context.Background(), "rust"); err == nil {
		t.Error("expected types error")
	}
}

func TestSearch_StripsScoreField(t *testing.T) {
	store := articleStore(t)
	store.records["article"][0] = record.New("article", "1", map[string]any{"title": "Rust guide", "score": 9})
	exec, _ := newExecutor(store, nil, DefaultOptions())

	out, err := exec.Search(context.Background(), "rust")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.Results[0].Fields()["score"]; ok {
		t.Error("score field must be stripped from results")
	}
}

func TestParseTermPolicy(t *testing.T) {
	if p, _ := ParseTermPolicy(""); p != PolicyOverwrite {
		t.Errorf("default = %s", p)
	}
	if p, _ := ParseTermPolicy("conjunctive"); p != PolicyConjunctive {
		t.Errorf("got %s", p)
	}
	if _, err := ParseTermPolicy("disjunctive"); err == nil {
		t.Error("expected error")
	}
}

func TestIntersect_PreservesOrder(t *testing.T) {
	a := []record.Record{record.New("t", "3", nil), record.New("t", "1", nil), record.New("t", "2", nil)}
	b := []record.Record{record.New("t", "2", nil), record.New("t", "3", nil)}
	got := intersect(a, b)
	if len(got) != 2 || got[0].PK() != "3" || got[1].PK() != "2" {
		t.Errorf("unexpected intersection: %v", got)
	}
}
