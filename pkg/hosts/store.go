package hosts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidRow indicates a stored host row that cannot be read back.
// It is surfaced, never repaired in place.
var ErrInvalidRow = errors.New("invalid host row")

// SearchLimit bounds the result size of a search.
const SearchLimit = 100

// statisticsTop bounds the per-category size of statistics listings.
const statisticsTop = 10

// Store persists hosts in the shared SQLite database. The github_hosts
// table is mutated exclusively through this type.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a host store over the shared database handle.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	if db == nil {
		panic("database handle cannot be nil")
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Upsert inserts the host or overwrites the existing row with the same
// full name. It stamps CachedAt and returns the stored row id. A host is
// never duplicated and never deleted here; deletion is an administrative
// action outside this layer.
func (s *Store) Upsert(ctx context.Context, h *Host) (int64, error) {
	h.CachedAt = s.now()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO github_hosts
			(owner, name, full_name, description, url, clone_url, ssh_url,
			 language, stars, forks, created_at, updated_at, pushed_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			description = excluded.description,
			url = excluded.url,
			clone_url = excluded.clone_url,
			ssh_url = excluded.ssh_url,
			language = excluded.language,
			stars = excluded.stars,
			forks = excluded.forks,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			pushed_at = excluded.pushed_at,
			cached_at = excluded.cached_at
		RETURNING id
	`, h.Owner, h.Name, h.FullName, h.Description, h.URL, h.CloneURL, h.SSHURL,
		h.Language, h.Stars, h.Forks, h.CreatedAt, h.UpdatedAt, h.PushedAt,
		h.CachedAt.UTC().Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert host %s: %w", h.FullName, err)
	}

	h.ID = id
	s.logger.Debug().
		Str("full_name", h.FullName).
		Int64("id", id).
		Msg("Host upserted")

	return id, nil
}

// GetByFullName returns the host with the given full name, or (nil, nil)
// when absent.
func (s *Store) GetByFullName(ctx context.Context, fullName string) (*Host, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, full_name, description, url, clone_url, ssh_url,
		       language, stars, forks, created_at, updated_at, pushed_at, cached_at
		FROM github_hosts
		WHERE full_name = ?
	`, fullName)

	h, err := scanHost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// Search returns hosts whose full name or description contains query,
// optionally restricted to a language, ordered by stars descending and
// bounded to SearchLimit.
func (s *Store) Search(ctx context.Context, query, language string) ([]*Host, error) {
	q := `
		SELECT id, owner, name, full_name, description, url, clone_url, ssh_url,
		       language, stars, forks, created_at, updated_at, pushed_at, cached_at
		FROM github_hosts
		WHERE (full_name LIKE ? OR description LIKE ?)
	`
	args := []any{"%" + query + "%", "%" + query + "%"}

	if language != "" {
		q += " AND language = ?"
		args = append(args, language)
	}

	q += fmt.Sprintf(" ORDER BY stars DESC LIMIT %d", SearchLimit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search hosts: %w", err)
	}
	defer rows.Close()

	var results []*Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search hosts: %w", err)
	}

	return results, nil
}

// LanguageCount is a language with its host count.
type LanguageCount struct {
	Language string
	Count    int
}

// StarredHost is a host full name with its star count.
type StarredHost struct {
	FullName string
	Stars    int
}

// Statistics summarizes the stored hosts.
type Statistics struct {
	TotalHosts   int
	TopLanguages []LanguageCount
	MostStarred  []StarredHost
}

// Statistics returns aggregate counts over the stored hosts: the total,
// the top languages by frequency, and the most starred hosts.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM github_hosts").Scan(&stats.TotalHosts); err != nil {
		return nil, fmt.Errorf("count hosts: %w", err)
	}

	langRows, err := s.db.QueryContext(ctx, `
		SELECT language, COUNT(*) AS count
		FROM github_hosts
		WHERE language IS NOT NULL AND language != ''
		GROUP BY language
		ORDER BY count DESC
		LIMIT ?
	`, statisticsTop)
	if err != nil {
		return nil, fmt.Errorf("top languages: %w", err)
	}
	defer langRows.Close()

	for langRows.Next() {
		var lc LanguageCount
		if err := langRows.Scan(&lc.Language, &lc.Count); err != nil {
			return nil, fmt.Errorf("scan language count: %w", err)
		}
		stats.TopLanguages = append(stats.TopLanguages, lc)
	}
	if err := langRows.Err(); err != nil {
		return nil, fmt.Errorf("top languages: %w", err)
	}

	starRows, err := s.db.QueryContext(ctx, `
		SELECT full_name, stars
		FROM github_hosts
		ORDER BY stars DESC
		LIMIT ?
	`, statisticsTop)
	if err != nil {
		return nil, fmt.Errorf("most starred: %w", err)
	}
	defer starRows.Close()

	for starRows.Next() {
		var sh StarredHost
		if err := starRows.Scan(&sh.FullName, &sh.Stars); err != nil {
			return nil, fmt.Errorf("scan starred host: %w", err)
		}
		stats.MostStarred = append(stats.MostStarred, sh)
	}
	if err := starRows.Err(); err != nil {
		return nil, fmt.Errorf("most starred: %w", err)
	}

	return stats, nil
}

// SetClock overrides the time source (for testing).
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanHost(row scanner) (*Host, error) {
	var (
		h           Host
		description sql.NullString
		url         sql.NullString
		cloneURL    sql.NullString
		sshURL      sql.NullString
		language    sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
		pushedAt    sql.NullString
		cachedAt    string
	)

	if err := row.Scan(&h.ID, &h.Owner, &h.Name, &h.FullName, &description,
		&url, &cloneURL, &sshURL, &language, &h.Stars, &h.Forks,
		&createdAt, &updatedAt, &pushedAt, &cachedAt); err != nil {
		return nil, err
	}

	h.Description = description.String
	h.URL = url.String
	h.CloneURL = cloneURL.String
	h.SSHURL = sshURL.String
	h.Language = language.String
	h.CreatedAt = createdAt.String
	h.UpdatedAt = updatedAt.String
	h.PushedAt = pushedAt.String

	ts, err := time.Parse(time.RFC3339, cachedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: host %s has unparseable cached_at %q",
			ErrInvalidRow, h.FullName, cachedAt)
	}
	h.CachedAt = ts

	return &h, nil
}
