package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/linkweaver/internal/database"
	"github.com/nao1215/linkweaver/internal/model"
	"github.com/spf13/cobra"
)

// pageStatus is the state of one stored page.
type pageStatus struct {
	PageID     string         `json:"page_id"`
	Role       model.Role     `json:"role"`
	HasContent bool           `json:"has_content"`
	Modified   bool           `json:"modified"`
	UpdatedAt  time.Time      `json:"updated_at,omitzero"`
	Links      map[string]int `json:"links"`
}

// scopeStatus summarizes a scope: its pages and the latest stored report.
type scopeStatus struct {
	ScopeID      string       `json:"scope_id"`
	Pages        []pageStatus `json:"pages"`
	LastReportID string       `json:"last_report_id,omitempty"`
	LastReportAt time.Time    `json:"last_report_at,omitzero"`
	Verified     bool         `json:"verified"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [scope...]",
		Short: "Show stored pages, content drift and the last validation",
		Long: `Status lists what the content store knows about each scope: which pages have
content, which pages differ from the baseline recorded before the first
injection, how many links each page has per status, and whether the last
stored validation passed.

Examples:
  # Every scope
  linkweaver status

  # One scope as JSON
  linkweaver status trail-running --json

  # List the scopes in the store
  linkweaver status --list-scopes`,
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("list-scopes", "L", false, "List the scopes in the content store")
	cmd.Flags().BoolP("json", "j", false, "Output status in JSON format")

	return cmd
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	listScopes, err := cmd.Flags().GetBool("list-scopes")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg)
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	scopes := args
	if len(scopes) == 0 {
		if scopes, err = store.ListScopes(ctx); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if listScopes {
		for _, s := range scopes {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	statuses := make([]scopeStatus, 0, len(scopes))
	for _, scope := range scopes {
		s, err := collectScopeStatus(ctx, store, scope)
		if err != nil {
			return err
		}
		statuses = append(statuses, s)
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	writeStatusText(out, statuses)
	return nil
}

func collectScopeStatus(ctx context.Context, store *database.Store, scope string) (scopeStatus, error) {
	status := scopeStatus{ScopeID: scope}

	pages, err := store.ListPagesInScope(ctx, scope)
	if err != nil {
		return status, err
	}
	links, err := store.ListLinks(ctx, scope)
	if err != nil {
		return status, err
	}
	counts := make(map[string]map[string]int)
	for _, l := range links {
		if counts[l.SourcePageID] == nil {
			counts[l.SourcePageID] = make(map[string]int)
		}
		counts[l.SourcePageID][string(l.Status)]++
	}

	for _, p := range pages {
		ps := pageStatus{PageID: p.ID, Role: p.Role, Links: counts[p.ID]}
		if ps.Links == nil {
			ps.Links = map[string]int{}
		}
		state, err := store.GetContentState(ctx, p.ID)
		switch {
		case err == nil:
			ps.HasContent = true
			ps.Modified = state.Changed()
			ps.UpdatedAt = state.UpdatedAt
		case !errors.Is(err, database.ErrContentNotFound):
			return status, err
		}
		status.Pages = append(status.Pages, ps)
	}

	report, err := store.GetLatestValidationReport(ctx, scope)
	if err != nil {
		return status, err
	}
	if report != nil {
		status.LastReportID = report.ID
		status.LastReportAt = report.GeneratedAt
		status.Verified = report.Verified()
	}
	return status, nil
}

func writeStatusText(w io.Writer, statuses []scopeStatus) {
	for _, s := range statuses {
		fmt.Fprintf(w, "SCOPE %s\n", s.ScopeID)
		switch {
		case s.LastReportID == "":
			fmt.Fprintln(w, "  last validation: never")
		case s.Verified:
			fmt.Fprintf(w, "  last validation: verified (%s)\n", s.LastReportAt.Format(time.RFC3339))
		default:
			fmt.Fprintf(w, "  last validation: needs attention (%s)\n", s.LastReportAt.Format(time.RFC3339))
		}

		for _, p := range s.Pages {
			state := "no content"
			if p.HasContent {
				state = "unchanged"
				if p.Modified {
					state = "modified"
				}
			}
			fmt.Fprintf(w, "  %-24s %-7s %-10s", p.PageID, p.Role, state)
			for _, st := range []model.Status{model.StatusVerified, model.StatusInjected, model.StatusFlagged, model.StatusPlanned} {
				if n := p.Links[string(st)]; n > 0 {
					fmt.Fprintf(w, " %s=%d", st, n)
				}
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
}
