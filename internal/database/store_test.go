package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/linkweaver/internal/model"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		s, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if s.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("Path() = %q", s.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if err == nil {
			t.Fatal("expected error for missing database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		if err := s.UpsertPage(context.Background(), model.Page{ID: "p1", ScopeID: "c1", Role: model.RoleParent}); err != nil {
			t.Fatalf("UpsertPage: %v", err)
		}
		_ = s.Close()

		s, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer s.Close()

		if _, err := s.GetPage(context.Background(), "p1"); err != nil {
			t.Errorf("page lost after reopen: %v", err)
		}
	})
}

func TestPages(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	pages := []model.Page{
		{ID: "b", ScopeID: "trail", Role: model.RoleChild, PrimaryKeyword: "trail shoes", URL: "/trail/shoes"},
		{ID: "a", ScopeID: "trail", Role: model.RoleParent, PrimaryKeyword: "trail running"},
		{ID: "c", ScopeID: model.OnboardingScope},
	}
	for _, p := range pages {
		if err := s.UpsertPage(ctx, p); err != nil {
			t.Fatalf("UpsertPage(%s): %v", p.ID, err)
		}
	}

	t.Run("empty role is stored as none", func(t *testing.T) {
		got, err := s.GetPage(ctx, "c")
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		if got.Role != model.RoleNone {
			t.Errorf("Role = %q, want none", got.Role)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := s.GetPage(ctx, "b")
		if err != nil {
			t.Fatalf("GetPage: %v", err)
		}
		if got != pages[0] {
			t.Errorf("GetPage = %+v, want %+v", got, pages[0])
		}
	})

	t.Run("upsert updates", func(t *testing.T) {
		if err := s.UpsertPage(ctx, model.Page{ID: "b", ScopeID: "trail", Role: model.RoleChild, PrimaryKeyword: "trail sneakers"}); err != nil {
			t.Fatalf("UpsertPage: %v", err)
		}
		got, _ := s.GetPage(ctx, "b")
		if got.PrimaryKeyword != "trail sneakers" {
			t.Errorf("PrimaryKeyword = %q", got.PrimaryKeyword)
		}
	})

	t.Run("missing page", func(t *testing.T) {
		_, err := s.GetPage(ctx, "zzz")
		if !errors.Is(err, ErrPageNotFound) {
			t.Errorf("err = %v, want ErrPageNotFound", err)
		}
	})

	t.Run("list in scope", func(t *testing.T) {
		got, err := s.ListPagesInScope(ctx, "trail")
		if err != nil {
			t.Fatalf("ListPagesInScope: %v", err)
		}
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("ListPagesInScope = %+v", got)
		}

		all, err := s.ListPages(ctx)
		if err != nil {
			t.Fatalf("ListPages: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("ListPages returned %d pages, want 3", len(all))
		}

		scopes, err := s.ListScopes(ctx)
		if err != nil {
			t.Fatalf("ListScopes: %v", err)
		}
		if len(scopes) != 2 || scopes[0] != model.OnboardingScope || scopes[1] != "trail" {
			t.Errorf("ListScopes = %v", scopes)
		}
	})
}

func TestContent(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.LoadContent(ctx, "p1"); !errors.Is(err, ErrContentNotFound) {
		t.Errorf("LoadContent before save: err = %v, want ErrContentNotFound", err)
	}
	if _, err := s.LoadBaseline(ctx, "p1"); !errors.Is(err, ErrContentNotFound) {
		t.Errorf("LoadBaseline before save: err = %v, want ErrContentNotFound", err)
	}

	original := "<p>Trail running shoes grip.</p>"
	injected := `<p>Trail <a href="/shoes">running shoes</a> grip.</p>`

	if err := s.SaveContent(ctx, "p1", original); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}
	state, err := s.GetContentState(ctx, "p1")
	if err != nil {
		t.Fatalf("GetContentState: %v", err)
	}
	if state.Changed() {
		t.Error("content should match baseline after first save")
	}
	if state.Hash != Fingerprint(original) {
		t.Errorf("Hash = %s, want %s", state.Hash, Fingerprint(original))
	}
	if state.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}

	if err := s.SaveContent(ctx, "p1", injected); err != nil {
		t.Fatalf("SaveContent: %v", err)
	}

	got, err := s.LoadContent(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadContent: %v", err)
	}
	if got != injected {
		t.Errorf("LoadContent = %q, want %q", got, injected)
	}

	baseline, err := s.LoadBaseline(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	if baseline != original {
		t.Errorf("baseline = %q, want the first saved content", baseline)
	}

	state, _ = s.GetContentState(ctx, "p1")
	if !state.Changed() {
		t.Error("content should differ from baseline after injection")
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint("<p>a</p>")
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
	if a != Fingerprint("<p>a</p>") {
		t.Error("fingerprint is not deterministic")
	}
	if a == Fingerprint("<p>b</p>") {
		t.Error("different content produced the same fingerprint")
	}
}

func testLinks() []model.InjectedLink {
	placed := model.NewInjectedLink(model.PlannedLink{
		SourcePageID: "child", TargetPageID: "parent", TargetURL: "/trail",
		AnchorText: "trail running", ScopeID: "trail", IsMandatoryParent: true,
	})
	placed.Status = model.StatusInjected
	placed.PlacementMethod = model.MethodRuleBased
	placed.ParagraphIndex = 1
	placed.FailedRules = []model.RuleName{model.RuleBudget}

	flagged := model.NewInjectedLink(model.PlannedLink{
		SourcePageID: "child", TargetPageID: "sibling", TargetURL: "/trail/socks",
		AnchorText: "socks", ScopeID: "trail",
	})
	flagged.Status = model.StatusFlagged
	flagged.Reason = "rewrite timed out"

	return []model.InjectedLink{placed, flagged}
}

func TestLinks(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	links := testLinks()
	other := model.NewInjectedLink(model.PlannedLink{
		SourcePageID: "intro", TargetPageID: "setup", TargetURL: "/setup",
		AnchorText: "setup", ScopeID: model.OnboardingScope,
	})

	if err := s.ReplaceLinks(ctx, "child", links); err != nil {
		t.Fatalf("ReplaceLinks: %v", err)
	}
	if err := s.ReplaceLinks(ctx, "intro", []model.InjectedLink{other}); err != nil {
		t.Fatalf("ReplaceLinks: %v", err)
	}

	got, err := s.ListLinks(ctx, "trail")
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListLinks returned %d links, want 2", len(got))
	}
	if got[0].TargetPageID != "parent" || got[1].TargetPageID != "sibling" {
		t.Errorf("planner order lost: %s, %s", got[0].TargetPageID, got[1].TargetPageID)
	}
	if !got[0].IsMandatoryParent || got[0].PlacementMethod != model.MethodRuleBased || got[0].ParagraphIndex != 1 {
		t.Errorf("placed link = %+v", got[0])
	}
	if len(got[0].FailedRules) != 1 || got[0].FailedRules[0] != model.RuleBudget {
		t.Errorf("FailedRules = %v", got[0].FailedRules)
	}
	if got[1].Status != model.StatusFlagged || got[1].Reason != "rewrite timed out" {
		t.Errorf("flagged link = %+v", got[1])
	}
	if got[1].FailedRules != nil || got[1].Warnings != nil {
		t.Errorf("empty lists should read back as nil: %+v", got[1])
	}

	all, err := s.ListAllLinks(ctx)
	if err != nil {
		t.Fatalf("ListAllLinks: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListAllLinks returned %d links, want 3", len(all))
	}

	t.Run("update statuses", func(t *testing.T) {
		updated := append([]model.InjectedLink(nil), got...)
		updated[0].Status = model.StatusVerified
		updated[0].FailedRules = nil
		if err := s.UpdateLinkStatuses(ctx, updated); err != nil {
			t.Fatalf("UpdateLinkStatuses: %v", err)
		}
		after, _ := s.ListLinks(ctx, "trail")
		if after[0].Status != model.StatusVerified || after[0].FailedRules != nil {
			t.Errorf("after update = %+v", after[0])
		}
		if after[1].Status != model.StatusFlagged {
			t.Errorf("untouched link changed: %+v", after[1])
		}
	})

	t.Run("reset scope", func(t *testing.T) {
		n, err := s.ResetScopeLinks(ctx, "trail")
		if err != nil {
			t.Fatalf("ResetScopeLinks: %v", err)
		}
		if n != 2 {
			t.Errorf("reset %d links, want 2", n)
		}
		after, _ := s.ListLinks(ctx, "trail")
		for _, l := range after {
			if l.Status != model.StatusPlanned || l.PlacementMethod != model.MethodUnplaced || l.ParagraphIndex != 0 || l.Reason != "" {
				t.Errorf("link not reset: %+v", l)
			}
		}
		onboarding, _ := s.ListLinks(ctx, model.OnboardingScope)
		if len(onboarding) != 1 || onboarding[0].Status != model.StatusPlanned {
			t.Errorf("other scope changed: %+v", onboarding)
		}
	})
}

func TestValidationReports(t *testing.T) {
	t.Parallel()

	s := setupTestStore(t)
	ctx := context.Background()

	latest, err := s.GetLatestValidationReport(ctx, "trail")
	if err != nil {
		t.Fatalf("GetLatestValidationReport: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil report for unvalidated scope")
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2"} {
		report := &model.ValidationReport{
			ID:          id,
			ScopeID:     "trail",
			Cluster:     true,
			GeneratedAt: base.Add(time.Duration(i) * time.Minute),
			Links:       []model.LinkResult{{Link: testLinks()[0], Status: model.StatusVerified}},
		}
		if err := s.SaveValidationReport(ctx, report); err != nil {
			t.Fatalf("SaveValidationReport: %v", err)
		}
	}

	latest, err = s.GetLatestValidationReport(ctx, "trail")
	if err != nil {
		t.Fatalf("GetLatestValidationReport: %v", err)
	}
	if latest == nil || latest.ID != "r2" {
		t.Fatalf("latest report = %+v, want r2", latest)
	}
	if !latest.Cluster || len(latest.Links) != 1 || latest.Links[0].Link.AnchorText != "trail running" {
		t.Errorf("report content lost: %+v", latest)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{name: "sqlite format", input: "2026-03-01 12:00:00"},
		{name: "RFC3339", input: "2026-03-01T12:00:00Z"},
		{name: "with millis", input: "2026-03-01 12:00:00.123"},
		{name: "garbage", input: "yesterday", zero: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parseTimestamp(tt.input)
			if got.IsZero() != tt.zero {
				t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
			}
		})
	}
}

func TestSavePage(t *testing.T) {
	t.Parallel()

	original := "<p>Wool socks keep feet dry.</p>"
	injected := `<p><a href="/socks">Wool socks</a> keep feet dry.</p>`
	link := model.NewInjectedLink(model.PlannedLink{
		SourcePageID: "shoes", TargetPageID: "socks", TargetURL: "/socks",
		AnchorText: "wool socks", ScopeID: "trail",
	})
	link.Status = model.StatusInjected
	link.PlacementMethod = model.MethodRuleBased
	link.ParagraphIndex = 1

	t.Run("writes content and links together", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		ctx := context.Background()

		if err := s.SavePage(ctx, "shoes", original, nil); err != nil {
			t.Fatalf("SavePage: %v", err)
		}
		if err := s.SavePage(ctx, "shoes", injected, []model.InjectedLink{link}); err != nil {
			t.Fatalf("SavePage: %v", err)
		}

		got, _ := s.LoadContent(ctx, "shoes")
		if got != injected {
			t.Errorf("content = %q, want %q", got, injected)
		}
		baseline, _ := s.LoadBaseline(ctx, "shoes")
		if baseline != original {
			t.Errorf("baseline = %q, want %q", baseline, original)
		}
		links, err := s.ListLinks(ctx, "trail")
		if err != nil || len(links) != 1 || links[0].Status != model.StatusInjected {
			t.Errorf("links = %+v, %v", links, err)
		}
	})

	t.Run("keeps nothing when the links cannot be written", func(t *testing.T) {
		t.Parallel()

		s := setupTestStore(t)
		ctx := context.Background()

		if err := s.SavePage(ctx, "shoes", original, nil); err != nil {
			t.Fatalf("SavePage: %v", err)
		}
		if _, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_links BEFORE INSERT ON links
		BEGIN SELECT RAISE(ABORT, 'links unavailable'); END
		`); err != nil {
			t.Fatalf("create trigger: %v", err)
		}

		if err := s.SavePage(ctx, "shoes", injected, []model.InjectedLink{link}); err == nil {
			t.Fatal("expected SavePage to fail")
		}
		got, _ := s.LoadContent(ctx, "shoes")
		if got != original {
			t.Errorf("content = %q, want the previous content %q", got, original)
		}
		state, _ := s.GetContentState(ctx, "shoes")
		if state.Changed() {
			t.Error("content hash must not change after a failed save")
		}
	})
}
