package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/user/logquarry/internal/domain"
)

func searchFixture(t *testing.T, sources map[string][]string) *SearchCoordinator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager := NewSessionManager(nil, nil, nil, nil, nil, logger, 0)
	for label, texts := range sources {
		entries := make([]domain.LogEntry, len(texts))
		for i, text := range texts {
			entries[i] = domain.LogEntry{Text: text}
		}
		s := &LogSession{
			ID:          label,
			SourceLabel: label,
			state:       domain.SessionReady,
			entries:     entries,
			logger:      logger,
		}
		manager.sessions[s.ID] = s
	}

	return NewSearchCoordinator(manager, nil, logger, SearchOptions{})
}

func TestSearchCoordinator_Search(t *testing.T) {
	t.Run("Groups Sorted By Label Results By Ordinal", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"zeta":  {"error one", "fine", "error two"},
			"alpha": {"fine", "an error here"},
			"quiet": {"nothing to see"},
		})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "error"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(outcome.Groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(outcome.Groups))
		}
		if outcome.Groups[0].SourceLabel != "alpha" || outcome.Groups[1].SourceLabel != "zeta" {
			t.Errorf("groups out of order: %s, %s", outcome.Groups[0].SourceLabel, outcome.Groups[1].SourceLabel)
		}

		zeta := outcome.Groups[1]
		if len(zeta.Results) != 2 {
			t.Fatalf("expected 2 zeta results, got %d", len(zeta.Results))
		}
		if zeta.Results[0].Ordinal != 0 || zeta.Results[1].Ordinal != 2 {
			t.Errorf("ordinals = %d, %d; want 0, 2", zeta.Results[0].Ordinal, zeta.Results[1].Ordinal)
		}
		if zeta.Results[1].LineNumber != 3 {
			t.Errorf("line number = %d, want 3 (1-based)", zeta.Results[1].LineNumber)
		}
		if outcome.Truncated {
			t.Error("small search must not be truncated")
		}
	})

	t.Run("Case Sensitivity", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"a": {"ERROR loud", "error quiet"},
		})

		insensitive, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "error"})
		if err != nil {
			t.Fatal(err)
		}
		if n := insensitive.TotalMatches(); n != 2 {
			t.Errorf("insensitive matches = %d, want 2", n)
		}

		sensitive, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "error", CaseSensitive: true})
		if err != nil {
			t.Fatal(err)
		}
		if n := sensitive.TotalMatches(); n != 1 {
			t.Errorf("sensitive matches = %d, want 1", n)
		}
	})

	t.Run("Regex Matches Across Continuation Lines", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"a": {"01/01/2024 10:00:00.000 head\n  at inner.Frame"},
		})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: `head\n\s+at`, IsRegex: true})
		if err != nil {
			t.Fatal(err)
		}
		if outcome.TotalMatches() != 1 {
			t.Errorf("expected the multi-line entry to match, got %d", outcome.TotalMatches())
		}
	})

	t.Run("Invalid Regex Yields Zero Results Not An Error", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"a": {"anything"},
		})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "([unclosed", IsRegex: true})
		if err != nil {
			t.Fatalf("invalid pattern must not fail the search: %v", err)
		}
		if len(outcome.Groups) != 0 {
			t.Errorf("expected no groups, got %d", len(outcome.Groups))
		}
	})

	t.Run("Blank Pattern Clears Instead Of Matching Everything", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"a": {"x", "y"},
		})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "   "})
		if err != nil {
			t.Fatal(err)
		}
		if len(outcome.Groups) != 0 || outcome.Truncated {
			t.Errorf("blank pattern must yield an empty outcome, got %+v", outcome)
		}
	})

	t.Run("Idempotent For Unchanged Data", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{
			"b": {"match 1", "skip", "match 2"},
			"a": {"match 3"},
		})
		query := domain.SearchQuery{Pattern: "match"}

		first, err := c.Search(context.Background(), query)
		if err != nil {
			t.Fatal(err)
		}
		second, err := c.Search(context.Background(), query)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("identical searches over unchanged data must yield identical outcomes")
		}
	})
}

func TestSearchCoordinator_Cap(t *testing.T) {
	entriesOf := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("needle %d", i)
		}
		return out
	}

	t.Run("Over Cap Truncates At Exactly The Cap", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{"big": entriesOf(6000)})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "needle"})
		if err != nil {
			t.Fatal(err)
		}
		if len(outcome.Groups) != 1 {
			t.Fatalf("expected 1 group, got %d", len(outcome.Groups))
		}
		if n := len(outcome.Groups[0].Results); n != 5000 {
			t.Errorf("capped group has %d results, want 5000", n)
		}
		if !outcome.Truncated {
			t.Error("outcome must be flagged truncated")
		}
	})

	t.Run("Under Cap Delivers Everything", func(t *testing.T) {
		c := searchFixture(t, map[string][]string{"big": entriesOf(4000)})

		outcome, err := c.Search(context.Background(), domain.SearchQuery{Pattern: "needle"})
		if err != nil {
			t.Fatal(err)
		}
		if n := len(outcome.Groups[0].Results); n != 4000 {
			t.Errorf("group has %d results, want 4000", n)
		}
		if outcome.Truncated {
			t.Error("outcome must not be flagged truncated")
		}
	})
}

func TestSearchCoordinator_Supersede(t *testing.T) {
	c := searchFixture(t, map[string][]string{
		"a": {"needle one", "needle two"},
	})

	var (
		fired    bool
		bOutcome *domain.SearchOutcome
		bErr     error
	)
	// The seam fires after search A claims its generation; search B then runs
	// to completion before A scans anything. Search B re-enters this seam on
	// the same goroutine, so the guard must be a plain flag, not sync.Once.
	c.searchStarted = func() {
		if fired {
			return
		}
		fired = true
		bOutcome, bErr = c.Search(context.Background(), domain.SearchQuery{Pattern: "needle two"})
	}

	aOutcome, aErr := c.Search(context.Background(), domain.SearchQuery{Pattern: "needle"})

	if !errors.Is(aErr, domain.ErrSearchSuperseded) {
		t.Fatalf("search A must be superseded, got outcome=%v err=%v", aOutcome, aErr)
	}
	if aOutcome != nil {
		t.Error("a superseded search must never deliver results")
	}

	if bErr != nil {
		t.Fatalf("search B failed: %v", bErr)
	}
	if bOutcome.TotalMatches() != 1 {
		t.Errorf("search B matches = %d, want 1", bOutcome.TotalMatches())
	}
}
