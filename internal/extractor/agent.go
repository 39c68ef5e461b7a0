package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"articlescout/internal/pagemeta"
	"articlescout/internal/types"
	"articlescout/internal/validate"
)

// agentMaxResults bounds the agentic strategy's output.
const agentMaxResults = 3

// agentInstruction restates the validation rules for the agent. Results
// still pass through the real validator; this just raises the hit rate.
const agentInstruction = `You find recently published blog articles on a specific website using web search.
Return ONLY a JSON array, no prose. Each element: {"title", "url", "description", "published_at"}.
Rules for every result:
1. url must be present, non-empty, and never the string "null".
2. url must be a direct link, never a search-engine redirect.
3. url must be absolute (scheme and host).
4. url host must be the site being searched (www. prefix does not matter).
5. Never return the site homepage.
6. Never return generic pages: about, contact, privacy, terms, legal, careers, jobs, team, faq, help, support, docs, login, signup, dashboard, app.
7. The path after the domain must be at least 11 characters.
8. title must be non-empty and must not be just "Blog" or "Home".
Use published_at in ISO 8601 when known, otherwise null.`

// Runner is the session-based agent service the extractor delegates to.
type Runner interface {
	CreateSession(ctx context.Context, model, instruction string) (string, error)
	Query(ctx context.Context, sessionID, prompt string, maxTurns int) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Resolver canonicalizes URLs through HTTP redirects.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) string
}

// Agent delegates extraction to a natural-language agent with a search
// tool. Used as the last-resort strategy, or first when configured to
// prefer it.
type Agent struct {
	runner   Runner
	resolver Resolver
	gate     *RateGate
	models   []string
	maxTurns int
	logger   *slog.Logger

	mu    sync.Mutex
	model string // selected model, cleared when the service loses it
}

// NewAgent creates the agentic search strategy. A nil runner marks the
// strategy as disabled (no API key configured).
func NewAgent(runner Runner, resolver Resolver, gate *RateGate, models []string, maxTurns int, logger *slog.Logger) *Agent {
	return &Agent{
		runner:   runner,
		resolver: resolver,
		gate:     gate,
		models:   models,
		maxTurns: maxTurns,
		logger:   logger.With("component", "agent_extractor"),
	}
}

func (a *Agent) Name() string { return "agent" }

// Enabled reports whether the strategy has a configured runner.
func (a *Agent) Enabled() bool { return a.runner != nil }

// Extract runs one agent session for the source. A confirmed upstream
// failure (quota, unsupported tool) surfaces as *types.ExtractionError so
// the orchestrator can distinguish it from "found nothing". The session
// is deleted on every exit path — the service leaks session state
// otherwise.
func (a *Agent) Extract(ctx context.Context, source types.Source) ([]types.Candidate, error) {
	if a.runner == nil {
		return nil, &types.ExtractionError{Strategy: a.Name(), Permanent: true, Err: types.ErrAgentDisabled}
	}

	if err := a.gate.Wait(ctx); err != nil {
		return nil, err
	}

	sessionID, err := a.openSession(ctx)
	if err != nil {
		return nil, err
	}
	// Cleanup must run even when the caller's context is already gone.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if derr := a.runner.DeleteSession(cleanupCtx, sessionID); derr != nil {
			a.logger.Warn("session cleanup failed", "session", sessionID, "error", derr)
		}
	}()

	prompt := fmt.Sprintf("Find up to %d of the most recent articles published on %s (%s).",
		agentMaxResults, source.URL, source.Name)

	reply, err := a.runner.Query(ctx, sessionID, prompt, a.maxTurns)
	if err != nil {
		return nil, a.classify(err)
	}

	candidates := parseAgentReply(reply)
	candidates = a.postProcess(ctx, candidates, source)

	a.logger.Debug("agent extraction complete",
		"source", source.URL,
		"candidates", len(candidates),
	)
	return candidates, nil
}

// openSession picks the working model: the previously selected one if
// any, otherwise the first candidate the service accepts. A model the
// service no longer knows clears the selection so the next call
// re-selects.
func (a *Agent) openSession(ctx context.Context) (string, error) {
	a.mu.Lock()
	selected := a.model
	a.mu.Unlock()

	tried := a.models
	if selected != "" {
		tried = append([]string{selected}, a.models...)
	}

	var lastErr error
	for _, model := range tried {
		sessionID, err := a.runner.CreateSession(ctx, model, agentInstruction)
		if err == nil {
			a.mu.Lock()
			a.model = model
			a.mu.Unlock()
			return sessionID, nil
		}
		lastErr = err

		if errors.Is(err, types.ErrModelNotFound) {
			a.logger.Warn("model rejected, trying next", "model", model, "error", err)
			a.mu.Lock()
			if a.model == model {
				a.model = ""
			}
			a.mu.Unlock()
			continue
		}
		return "", a.classify(err)
	}

	return "", &types.ExtractionError{Strategy: a.Name(), Err: fmt.Errorf("no usable model: %w", lastErr)}
}

// classify wraps service errors as ExtractionError, marking quota and
// tool-capability failures permanent for this process run.
func (a *Agent) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	permanent := errors.Is(err, types.ErrQuotaExceeded) || errors.Is(err, types.ErrToolUnsupported)
	if errors.Is(err, types.ErrModelNotFound) {
		a.mu.Lock()
		a.model = ""
		a.mu.Unlock()
	}
	return &types.ExtractionError{Strategy: a.Name(), Permanent: permanent, Err: err}
}

// postProcess validates, canonicalizes (search tools surface redirected
// slugs), sorts dated-first newest-first, and trims.
func (a *Agent) postProcess(ctx context.Context, candidates []types.Candidate, source types.Source) []types.Candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if err := validate.Candidate(c, source.URL); err != nil {
			a.logger.Debug("agent candidate rejected", "url", c.URL, "error", err)
			continue
		}
		if a.resolver != nil {
			c.URL = a.resolver.Resolve(ctx, c.URL)
		}
		kept = append(kept, c)
	}

	kept = dedupeByURL(kept)
	SortNewestFirst(kept)
	if len(kept) > agentMaxResults {
		kept = kept[:agentMaxResults]
	}
	return kept
}

// parseAgentReply pulls a JSON array out of free-form agent text,
// tolerating markdown code fences and stray control characters. The
// reply is untyped on arrival and goes through the same validation as
// every other candidate source.
func parseAgentReply(reply string) []types.Candidate {
	payload := extractJSONArray(reply)
	if payload == "" {
		return nil
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil
	}

	out := make([]types.Candidate, 0, len(rows))
	for _, row := range rows {
		c := types.Candidate{
			Title:       stringField(row, "title"),
			URL:         stringField(row, "url", "link"),
			Description: stringField(row, "description", "summary"),
		}
		if ds := stringField(row, "published_at", "date", "publishedAt"); ds != "" && ds != "null" {
			c.PublishedAt = pagemeta.ParseDate(ds)
		}
		out = append(out, c)
	}
	return out
}

// extractJSONArray finds the first balanced JSON array in s, after
// stripping code fences and control characters.
func extractJSONArray(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)

	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// stringField returns the first present, non-empty string among keys.
func stringField(row map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := row[key].(string); ok && v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
