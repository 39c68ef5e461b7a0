package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"articlescout/internal/extractor"
	"articlescout/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeStrategy scripts one extraction strategy.
type fakeStrategy struct {
	name       string
	candidates []types.Candidate
	err        error
	calls      int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(ctx context.Context, source types.Source) ([]types.Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

// fakeHealth records UpdateScrapingResult calls.
type fakeHealth struct {
	records []types.ScrapeHealth
	err     error
}

func (f *fakeHealth) UpdateScrapingResult(ctx context.Context, sourceID string, rec types.ScrapeHealth) error {
	f.records = append(f.records, rec)
	return f.err
}

var testSource = types.Source{ID: "src-1", URL: "https://example.com", Name: "Example", Category: "eng"}

func dated(title, url string, daysAgo int) types.Candidate {
	t := time.Now().AddDate(0, 0, -daysAgo)
	return types.Candidate{Title: title, URL: url, PublishedAt: &t}
}

func newOrch(health HealthRecorder, maxArticles int, strategies ...extractor.Extractor) *Orchestrator {
	return New(strategies, health, nil, maxArticles, testLogger())
}

func TestRunFallsBackUntilSuccess(t *testing.T) {
	static := &fakeStrategy{name: "static"}
	rendered := &fakeStrategy{name: "rendered", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
		dated("Another Valid Article Here", "https://example.com/blog/another-valid-article", 2),
	}}
	agent := &fakeStrategy{name: "agent"}

	health := &fakeHealth{}
	o := newOrch(health, 3, static, rendered, agent)

	articles, err := o.Run(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	if agent.calls != 0 {
		t.Errorf("agent called %d times, want 0 after rendered succeeded", agent.calls)
	}
	if static.calls != 1 || rendered.calls != 1 {
		t.Errorf("calls static=%d rendered=%d, want 1 each", static.calls, rendered.calls)
	}

	if len(health.records) != 1 {
		t.Fatalf("health records = %d, want 1", len(health.records))
	}
	rec := health.records[0]
	if !rec.Success || rec.Method != "rendered" || rec.CandidatesKept != 2 {
		t.Errorf("health record = %+v", rec)
	}
}

func TestRunArticleFieldsBound(t *testing.T) {
	strat := &fakeStrategy{name: "static", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
	}}
	o := newOrch(nil, 3, strat)

	articles, err := o.Run(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	a := articles[0]
	if a.ID == "" {
		t.Error("article should get a generated ID")
	}
	if a.SourceID != "src-1" || a.SourceName != "Example" || a.Category != "eng" {
		t.Errorf("source binding = %+v", a)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRunCanonicalDedup(t *testing.T) {
	strat := &fakeStrategy{name: "static", candidates: []types.Candidate{
		{Title: "The Same Article Twice", URL: "https://www.example.com/blog/the-same-article/"},
		{Title: "The Same Article Twice", URL: "https://example.com/blog/the-same-article"},
	}}
	o := newOrch(nil, 3, strat)

	articles, err := o.Run(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1 after canonical dedup", len(articles))
	}
}

func TestRunTrimsToMaxArticles(t *testing.T) {
	strat := &fakeStrategy{name: "static", candidates: []types.Candidate{
		dated("Oldest Of The Four Articles", "https://example.com/blog/oldest-of-the-four", 10),
		dated("Newest Of The Four Articles", "https://example.com/blog/newest-of-the-four", 1),
		dated("Second Newest Article Here", "https://example.com/blog/second-newest-article", 2),
		dated("Third Newest Article Here", "https://example.com/blog/third-newest-article", 3),
	}}
	o := newOrch(nil, 3, strat)

	articles, err := o.Run(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("got %d articles, want 3", len(articles))
	}
	if articles[0].URL != "https://example.com/blog/newest-of-the-four" {
		t.Errorf("first article = %q, want the newest", articles[0].URL)
	}
	for _, a := range articles {
		if a.URL == "https://example.com/blog/oldest-of-the-four" {
			t.Error("oldest article survived the trim")
		}
	}
}

func TestRunInvalidCandidatesDontCountAsSuccess(t *testing.T) {
	// First strategy returns only junk; the next one must still run.
	junk := &fakeStrategy{name: "static", candidates: []types.Candidate{
		{Title: "Homepage", URL: "https://example.com/"},
		{Title: "About", URL: "https://example.com/about"},
	}}
	good := &fakeStrategy{name: "rendered", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
	}}
	o := newOrch(nil, 3, junk, good)

	articles, err := o.Run(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1 from the fallback", len(articles))
	}
	if good.calls != 1 {
		t.Errorf("fallback called %d times, want 1", good.calls)
	}
}

func TestRunExhaustedReturnsErrNoArticles(t *testing.T) {
	static := &fakeStrategy{name: "static"}
	rendered := &fakeStrategy{name: "rendered"}
	health := &fakeHealth{}
	o := newOrch(health, 3, static, rendered)

	_, err := o.Run(context.Background(), testSource)
	if !errors.Is(err, types.ErrNoArticles) {
		t.Fatalf("Run() error = %v, want ErrNoArticles", err)
	}

	if len(health.records) != 1 {
		t.Fatalf("health records = %d, want 1 failure record", len(health.records))
	}
	if health.records[0].Success {
		t.Error("failure record marked successful")
	}
}

func TestRunHealthWriteFailureSwallowed(t *testing.T) {
	strat := &fakeStrategy{name: "static", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
	}}
	health := &fakeHealth{err: fmt.Errorf("mongo down")}
	o := newOrch(health, 3, strat)

	if _, err := o.Run(context.Background(), testSource); err != nil {
		t.Fatalf("Run() error = %v, want health failure swallowed", err)
	}
}

func TestRunInvalidSource(t *testing.T) {
	o := newOrch(nil, 3, &fakeStrategy{name: "static"})

	cases := []string{"", "ftp://example.com", "not a url at all", "https://"}
	for _, raw := range cases {
		_, err := o.Run(context.Background(), types.Source{URL: raw})
		if !errors.Is(err, types.ErrInvalidSource) {
			t.Errorf("Run(%q) error = %v, want ErrInvalidSource", raw, err)
		}
	}
}

func TestRunPermanentFailureDisablesStrategy(t *testing.T) {
	agent := &fakeStrategy{
		name: "agent",
		err:  &types.ExtractionError{Strategy: "agent", Permanent: true, Err: types.ErrQuotaExceeded},
	}
	good := &fakeStrategy{name: "static", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
	}}
	o := newOrch(nil, 3, agent, good)

	if _, err := o.Run(context.Background(), testSource); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := o.Run(context.Background(), testSource); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if agent.calls != 1 {
		t.Errorf("agent called %d times, want 1 (disabled after permanent failure)", agent.calls)
	}
	if good.calls != 2 {
		t.Errorf("static called %d times, want 2", good.calls)
	}
}

func TestRunTransientFailureKeepsStrategy(t *testing.T) {
	flaky := &fakeStrategy{
		name: "rendered",
		err:  &types.ExtractionError{Strategy: "rendered", Err: fmt.Errorf("tab crashed")},
	}
	good := &fakeStrategy{name: "agent", candidates: []types.Candidate{
		dated("A Perfectly Valid Article", "https://example.com/blog/a-perfectly-valid-article", 1),
	}}
	o := newOrch(nil, 3, flaky, good)

	for i := 0; i < 2; i++ {
		if _, err := o.Run(context.Background(), testSource); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
	if flaky.calls != 2 {
		t.Errorf("flaky strategy called %d times, want 2 (not disabled)", flaky.calls)
	}
}

func TestRunContextCancelledPropagates(t *testing.T) {
	strat := &fakeStrategy{name: "static", err: context.Canceled}
	o := newOrch(nil, 3, strat)

	_, err := o.Run(context.Background(), testSource)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
