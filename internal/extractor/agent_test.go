package extractor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"articlescout/internal/types"
)

// fakeRunner scripts the agent service for tests.
type fakeRunner struct {
	reply      string
	queryErr   error
	createErr  map[string]error // per-model create failures
	created    []string
	deleted    []string
	queries    int
	sessionSeq int
}

func (f *fakeRunner) CreateSession(ctx context.Context, model, instruction string) (string, error) {
	if err := f.createErr[model]; err != nil {
		return "", err
	}
	f.created = append(f.created, model)
	f.sessionSeq++
	return fmt.Sprintf("sess-%d", f.sessionSeq), nil
}

func (f *fakeRunner) Query(ctx context.Context, sessionID, prompt string, maxTurns int) (string, error) {
	f.queries++
	if f.queryErr != nil {
		return "", f.queryErr
	}
	return f.reply, nil
}

func (f *fakeRunner) DeleteSession(ctx context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

// identityResolver returns URLs unchanged.
type identityResolver struct{}

func (identityResolver) Resolve(ctx context.Context, rawURL string) string { return rawURL }

func newTestAgent(runner *fakeRunner, models ...string) *Agent {
	if len(models) == 0 {
		models = []string{"scout-large"}
	}
	return NewAgent(runner, identityResolver{}, NewRateGate(0), models, 12, testLogger())
}

var testSource = types.Source{ID: "src-1", URL: "https://example.com", Name: "Example"}

func TestAgentExtractParsesFencedJSON(t *testing.T) {
	runner := &fakeRunner{reply: "Here are the articles:\n```json\n[" +
		`{"title": "Launch Week Recap", "url": "https://example.com/blog/launch-week-recap", "description": "Everything we shipped.", "published_at": "2025-06-02"}` +
		"]\n```"}
	agent := newTestAgent(runner)

	got, err := agent.Extract(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].Title != "Launch Week Recap" {
		t.Errorf("Title = %q", got[0].Title)
	}
	if got[0].PublishedAt == nil {
		t.Error("published_at should be parsed")
	}
}

func TestAgentDeletesSessionOnSuccess(t *testing.T) {
	runner := &fakeRunner{reply: "[]"}
	agent := newTestAgent(runner)

	if _, err := agent.Extract(context.Background(), testSource); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(runner.deleted) != 1 {
		t.Fatalf("DeleteSession called %d times, want 1", len(runner.deleted))
	}
}

func TestAgentDeletesSessionOnQueryFailure(t *testing.T) {
	runner := &fakeRunner{queryErr: fmt.Errorf("%w: monthly limit", types.ErrQuotaExceeded)}
	agent := newTestAgent(runner)

	_, err := agent.Extract(context.Background(), testSource)
	if err == nil {
		t.Fatal("Extract() error = nil, want quota error")
	}
	var xerr *types.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("error type = %T, want *types.ExtractionError", err)
	}
	if !xerr.Permanent {
		t.Error("quota exhaustion should be permanent")
	}
	if len(runner.deleted) != 1 {
		t.Fatalf("DeleteSession called %d times, want 1 even on failure", len(runner.deleted))
	}
}

func TestAgentFallsBackAcrossModels(t *testing.T) {
	runner := &fakeRunner{
		reply:     "[]",
		createErr: map[string]error{"scout-large": fmt.Errorf("%w: scout-large", types.ErrModelNotFound)},
	}
	agent := newTestAgent(runner, "scout-large", "scout-standard")

	if _, err := agent.Extract(context.Background(), testSource); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(runner.created) != 1 || runner.created[0] != "scout-standard" {
		t.Errorf("created sessions = %v, want [scout-standard]", runner.created)
	}

	// The working model is remembered across calls.
	if _, err := agent.Extract(context.Background(), testSource); err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	if runner.created[len(runner.created)-1] != "scout-standard" {
		t.Errorf("second call used %q, want remembered scout-standard", runner.created[len(runner.created)-1])
	}
}

func TestAgentDisabledWithoutRunner(t *testing.T) {
	agent := NewAgent(nil, identityResolver{}, NewRateGate(0), []string{"scout-large"}, 12, testLogger())

	if agent.Enabled() {
		t.Error("Enabled() = true without a runner")
	}
	_, err := agent.Extract(context.Background(), testSource)
	if !errors.Is(err, types.ErrAgentDisabled) {
		t.Fatalf("Extract() error = %v, want ErrAgentDisabled", err)
	}
	var xerr *types.ExtractionError
	if !errors.As(err, &xerr) || !xerr.Permanent {
		t.Error("disabled agent should report a permanent extraction error")
	}
}

func TestAgentTrimsAndSortsResults(t *testing.T) {
	reply := `[
{"title": "Oldest Article Of The Set", "url": "https://example.com/blog/oldest-article", "published_at": "2025-01-01"},
{"title": "Undated Article In The Middle", "url": "https://example.com/blog/undated-article"},
{"title": "Newest Article Of The Set", "url": "https://example.com/blog/newest-article", "published_at": "2025-06-01"},
{"title": "Second Newest Article Here", "url": "https://example.com/blog/second-newest", "published_at": "2025-05-01"}
]`
	runner := &fakeRunner{reply: reply}
	agent := newTestAgent(runner)

	got, err := agent.Extract(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want trim to 3", len(got))
	}
	if got[0].URL != "https://example.com/blog/newest-article" {
		t.Errorf("first = %q, want newest", got[0].URL)
	}
	if got[1].URL != "https://example.com/blog/second-newest" {
		t.Errorf("second = %q", got[1].URL)
	}
	// The undated row sorts after every dated one and falls off the trim.
	for _, c := range got {
		if c.URL == "https://example.com/blog/undated-article" {
			t.Error("undated candidate survived ahead of dated ones")
		}
	}
}

func TestAgentRejectsWrongDomainResults(t *testing.T) {
	reply := `[
{"title": "A Post From Somewhere Else", "url": "https://other.example.org/blog/a-post-from-elsewhere"},
{"title": "Redirect Artifact Entry", "url": "https://vertexaisearch.cloud.google.com/grounding-api-redirect/abc123"},
{"title": "A Legitimate Local Post", "url": "https://example.com/blog/a-legitimate-local-post"}
]`
	runner := &fakeRunner{reply: reply}
	agent := newTestAgent(runner)

	got, err := agent.Extract(context.Background(), testSource)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].URL != "https://example.com/blog/a-legitimate-local-post" {
		t.Errorf("URL = %q", got[0].URL)
	}
}

func TestParseAgentReplyGarbage(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"prose only", "I could not find any articles on that site."},
		{"unbalanced", `[{"title": "broken`},
		{"not an array", `{"title": "object not array"}`},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseAgentReply(tc.reply); len(got) != 0 {
				t.Errorf("parseAgentReply(%q) = %+v, want empty", tc.reply, got)
			}
		})
	}
}

func TestParseAgentReplyNullDate(t *testing.T) {
	got := parseAgentReply(`[{"title": "No Date Known Here", "url": "https://example.com/blog/no-date-known", "published_at": "null"}]`)
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].PublishedAt != nil {
		t.Errorf("PublishedAt = %v, want nil for literal null string", got[0].PublishedAt)
	}
}

func TestAgentRateGateSpacesCalls(t *testing.T) {
	clock := newFakeClock()
	gate := newTestGate(5*time.Second, clock)
	runner := &fakeRunner{reply: "[]"}
	agent := NewAgent(runner, identityResolver{}, gate, []string{"scout-large"}, 12, testLogger())

	if _, err := agent.Extract(context.Background(), testSource); err != nil {
		t.Fatalf("first Extract() error = %v", err)
	}
	first := clock.now
	if _, err := agent.Extract(context.Background(), testSource); err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	if got := clock.now.Sub(first); got < 5*time.Second {
		t.Errorf("second call started %v after first, want >= 5s", got)
	}
}
