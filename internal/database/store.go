package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkweaver/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "linkweaver.db"

// reportTimeFormat has a fixed width so that report timestamps sort as text.
const reportTimeFormat = "2006-01-02T15:04:05.000000000Z"

// Store is the content store: pages, their HTML, the pre-injection
// baselines, link records and validation reports.
//
// Design decision: one SQLite connection serializes all writes. Pages are
// processed concurrently, but each page only ever writes its own rows, so
// the single writer never reorders the effects of one page.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		role TEXT NOT NULL,
		primary_keyword TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_scope ON pages(scope_id);

	-- Current HTML of each page
	CREATE TABLE IF NOT EXISTS contents (
		page_id TEXT PRIMARY KEY,
		html TEXT NOT NULL,
		hash TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- HTML as it was first stored, before any injection
	CREATE TABLE IF NOT EXISTS baselines (
		page_id TEXT PRIMARY KEY,
		html TEXT NOT NULL,
		hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_page_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		target_page_id TEXT NOT NULL,
		target_url TEXT NOT NULL,
		anchor_text TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		is_mandatory_parent INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		placement_method TEXT NOT NULL,
		paragraph_index INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		failed_rules TEXT NOT NULL DEFAULT '[]',
		warnings TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_page_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_links_scope ON links(scope_id);

	CREATE TABLE IF NOT EXISTS validation_reports (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		batch_id TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		verified INTEGER NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_scope ON validation_reports(scope_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Fingerprint returns the hex SHA3-256 digest of content.
func Fingerprint(content string) string {
	sum := sha3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// UpsertPage inserts or updates a page.
func (s *Store) UpsertPage(ctx context.Context, page model.Page) error {
	query := `
	INSERT INTO pages (id, scope_id, role, primary_keyword, url)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		scope_id = excluded.scope_id,
		role = excluded.role,
		primary_keyword = excluded.primary_keyword,
		url = excluded.url,
		updated_at = CURRENT_TIMESTAMP
	`
	role := page.Role
	if role == "" {
		role = model.RoleNone
	}
	if _, err := s.db.ExecContext(ctx, query, page.ID, page.ScopeID, string(role), page.PrimaryKeyword, page.URL); err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.ID, err)
	}
	return nil
}

// GetPage returns a page by id.
func (s *Store) GetPage(ctx context.Context, id string) (model.Page, error) {
	query := `SELECT id, scope_id, role, primary_keyword, url FROM pages WHERE id = ?`

	page, err := scanPage(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Page{}, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("failed to get page %s: %w", id, err)
	}
	return page, nil
}

// ListPages returns every page ordered by id.
func (s *Store) ListPages(ctx context.Context) ([]model.Page, error) {
	return s.queryPages(ctx, `SELECT id, scope_id, role, primary_keyword, url FROM pages ORDER BY id`)
}

// ListPagesInScope returns the pages of one scope ordered by id.
func (s *Store) ListPagesInScope(ctx context.Context, scopeID string) ([]model.Page, error) {
	return s.queryPages(ctx, `SELECT id, scope_id, role, primary_keyword, url FROM pages WHERE scope_id = ? ORDER BY id`, scopeID)
}

// ListScopes returns the distinct scope ids of all pages.
func (s *Store) ListScopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT scope_id FROM pages ORDER BY scope_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

func (s *Store) queryPages(ctx context.Context, query string, args ...any) ([]model.Page, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (model.Page, error) {
	var page model.Page
	var role string
	if err := row.Scan(&page.ID, &page.ScopeID, &role, &page.PrimaryKeyword, &page.URL); err != nil {
		return model.Page{}, err
	}
	page.Role = model.Role(role)
	return page, nil
}

// LoadContent returns the current HTML of a page.
func (s *Store) LoadContent(ctx context.Context, pageID string) (string, error) {
	var html string
	err := s.db.QueryRowContext(ctx, `SELECT html FROM contents WHERE page_id = ?`, pageID).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrContentNotFound, pageID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load content of %s: %w", pageID, err)
	}
	return html, nil
}

// LoadBaseline returns the HTML a page had when it was first stored.
func (s *Store) LoadBaseline(ctx context.Context, pageID string) (string, error) {
	var html string
	err := s.db.QueryRowContext(ctx, `SELECT html FROM baselines WHERE page_id = ?`, pageID).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no baseline for %s", ErrContentNotFound, pageID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load baseline of %s: %w", pageID, err)
	}
	return html, nil
}

// SaveContent stores the HTML of a page. The first save of a page also
// records its baseline, which later saves never change.
func (s *Store) SaveContent(ctx context.Context, pageID, html string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveContentTx(ctx, tx, pageID, html); err != nil {
		return err
	}
	return tx.Commit()
}

// SavePage stores the HTML of a page and replaces its link records in one
// transaction: either both are written or neither is.
func (s *Store) SavePage(ctx context.Context, pageID, html string, links []model.InjectedLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveContentTx(ctx, tx, pageID, html); err != nil {
		return err
	}
	if err := replaceLinksTx(ctx, tx, pageID, links); err != nil {
		return err
	}
	return tx.Commit()
}

func saveContentTx(ctx context.Context, tx *sql.Tx, pageID, html string) error {
	hash := Fingerprint(html)

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO contents (page_id, html, hash) VALUES (?, ?, ?)
	ON CONFLICT(page_id) DO UPDATE SET
		html = excluded.html,
		hash = excluded.hash,
		updated_at = CURRENT_TIMESTAMP
	`, pageID, html, hash); err != nil {
		return fmt.Errorf("failed to save content of %s: %w", pageID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO baselines (page_id, html, hash) VALUES (?, ?, ?)`,
		pageID, html, hash); err != nil {
		return fmt.Errorf("failed to record baseline of %s: %w", pageID, err)
	}
	return nil
}

// ContentState describes how a page's content relates to its baseline.
type ContentState struct {
	Hash         string
	BaselineHash string
	UpdatedAt    time.Time
}

// Changed reports whether the content differs from the baseline.
func (c ContentState) Changed() bool {
	return c.Hash != c.BaselineHash
}

// GetContentState returns the fingerprints of a page's content and baseline.
func (s *Store) GetContentState(ctx context.Context, pageID string) (ContentState, error) {
	query := `
	SELECT c.hash, COALESCE(b.hash, ''), c.updated_at
	FROM contents c LEFT JOIN baselines b ON b.page_id = c.page_id
	WHERE c.page_id = ?
	`
	var state ContentState
	var updated string
	err := s.db.QueryRowContext(ctx, query, pageID).Scan(&state.Hash, &state.BaselineHash, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ContentState{}, fmt.Errorf("%w: %s", ErrContentNotFound, pageID)
	}
	if err != nil {
		return ContentState{}, fmt.Errorf("failed to get content state of %s: %w", pageID, err)
	}
	state.UpdatedAt = parseTimestamp(updated)
	return state, nil
}

// ReplaceLinks replaces every link record of a source page. Positions follow
// the order of links.
func (s *Store) ReplaceLinks(ctx context.Context, sourcePageID string, links []model.InjectedLink) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceLinksTx(ctx, tx, sourcePageID, links); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceLinksTx(ctx context.Context, tx *sql.Tx, sourcePageID string, links []model.InjectedLink) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source_page_id = ?`, sourcePageID); err != nil {
		return fmt.Errorf("failed to delete links of %s: %w", sourcePageID, err)
	}

	query := `
	INSERT INTO links (source_page_id, position, target_page_id, target_url, anchor_text, scope_id,
		is_mandatory_parent, status, placement_method, paragraph_index, reason, failed_rules, warnings)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, l := range links {
		failedJSON, err := json.Marshal(nonNil(l.FailedRules))
		if err != nil {
			return fmt.Errorf("failed to serialize failed rules: %w", err)
		}
		warningsJSON, err := json.Marshal(nonNil(l.Warnings))
		if err != nil {
			return fmt.Errorf("failed to serialize warnings: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query,
			sourcePageID,
			i,
			l.TargetPageID,
			l.TargetURL,
			l.AnchorText,
			l.ScopeID,
			l.IsMandatoryParent,
			string(l.Status),
			string(l.PlacementMethod),
			l.ParagraphIndex,
			l.Reason,
			string(failedJSON),
			string(warningsJSON),
		); err != nil {
			return fmt.Errorf("failed to insert link of %s: %w", sourcePageID, err)
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ListLinks returns the links of a scope, grouped by source page in the
// order they were stored and in planner order within a page.
func (s *Store) ListLinks(ctx context.Context, scopeID string) ([]model.InjectedLink, error) {
	return s.queryLinks(ctx, `WHERE scope_id = ?`, scopeID)
}

// ListAllLinks returns every stored link.
func (s *Store) ListAllLinks(ctx context.Context) ([]model.InjectedLink, error) {
	return s.queryLinks(ctx, "")
}

func (s *Store) queryLinks(ctx context.Context, where string, args ...any) ([]model.InjectedLink, error) {
	query := `
	SELECT source_page_id, target_page_id, target_url, anchor_text, scope_id, is_mandatory_parent,
		status, placement_method, paragraph_index, reason, failed_rules, warnings
	FROM links ` + where + `
	ORDER BY scope_id, (SELECT MIN(l2.id) FROM links l2 WHERE l2.source_page_id = links.source_page_id), position
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []model.InjectedLink
	for rows.Next() {
		var l model.InjectedLink
		var status, method, failedJSON, warningsJSON string

		if err := rows.Scan(
			&l.SourcePageID,
			&l.TargetPageID,
			&l.TargetURL,
			&l.AnchorText,
			&l.ScopeID,
			&l.IsMandatoryParent,
			&status,
			&method,
			&l.ParagraphIndex,
			&l.Reason,
			&failedJSON,
			&warningsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}

		l.Status = model.Status(status)
		l.PlacementMethod = model.PlacementMethod(method)
		if err := json.Unmarshal([]byte(failedJSON), &l.FailedRules); err != nil {
			return nil, fmt.Errorf("failed to parse failed rules: %w", err)
		}
		if err := json.Unmarshal([]byte(warningsJSON), &l.Warnings); err != nil {
			return nil, fmt.Errorf("failed to parse warnings: %w", err)
		}
		if len(l.FailedRules) == 0 {
			l.FailedRules = nil
		}
		if len(l.Warnings) == 0 {
			l.Warnings = nil
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// UpdateLinkStatuses stores the outcome of a validation run. links must hold
// every link of each source page it mentions, in planner order.
func (s *Store) UpdateLinkStatuses(ctx context.Context, links []model.InjectedLink) error {
	bySource := make(map[string][]model.InjectedLink)
	var order []string
	for _, l := range links {
		if _, ok := bySource[l.SourcePageID]; !ok {
			order = append(order, l.SourcePageID)
		}
		bySource[l.SourcePageID] = append(bySource[l.SourcePageID], l)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, src := range order {
		if err := replaceLinksTx(ctx, tx, src, bySource[src]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ResetScopeLinks reverts every link of a scope to the planned state. It is
// used after the scope's content has been stripped.
func (s *Store) ResetScopeLinks(ctx context.Context, scopeID string) (int64, error) {
	query := `
	UPDATE links SET
		status = ?,
		placement_method = ?,
		paragraph_index = 0,
		reason = '',
		failed_rules = '[]',
		warnings = '[]',
		updated_at = CURRENT_TIMESTAMP
	WHERE scope_id = ?
	`
	res, err := s.db.ExecContext(ctx, query, string(model.StatusPlanned), string(model.MethodUnplaced), scopeID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset links of scope %s: %w", scopeID, err)
	}
	return res.RowsAffected()
}

// SaveValidationReport stores a validation report.
func (s *Store) SaveValidationReport(ctx context.Context, report *model.ValidationReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO validation_reports (id, scope_id, batch_id, timestamp, verified, report_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		report.ID,
		report.ScopeID,
		report.BatchID,
		report.GeneratedAt.UTC().Format(reportTimeFormat),
		report.Verified(),
		string(reportJSON),
	); err != nil {
		return fmt.Errorf("failed to save validation report: %w", err)
	}
	return nil
}

// GetLatestValidationReport returns the most recent report of a scope, or
// nil when the scope was never validated.
func (s *Store) GetLatestValidationReport(ctx context.Context, scopeID string) (*model.ValidationReport, error) {
	query := `
	SELECT report_json FROM validation_reports
	WHERE scope_id = ?
	ORDER BY timestamp DESC, rowid DESC
	LIMIT 1
	`

	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, scopeID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation report: %w", err)
	}

	var report model.ValidationReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
