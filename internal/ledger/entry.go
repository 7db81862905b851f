package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"omrpipe/internal/outcome"
)

// ErrNotFound is returned by Get when no entry has the requested job ID.
var ErrNotFound = errors.New("ledger entry not found")

// Entry is one recorded conversion. BatchID is set for jobs run by a batch.
type Entry struct {
	ID           int64
	JobID        string
	Source       string
	Preset       string
	OriginalPath string
	ProcessedDir string
	OutputDir    string
	Pages        int
	Kind         outcome.Kind
	Artifact     string
	ExitCode     int
	Elapsed      time.Duration
	Detail       string
	BatchID      string
	Signal       string
	CreatedAt    time.Time
}

// Summary counts entries by outcome kind.
type Summary struct {
	Total  int
	ByKind map[outcome.Kind]int
	Last   time.Time
}

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "id, job_id, source, preset, original_path, processed_dir, output_dir, pages, outcome, artifact, exit_code, elapsed_ms, detail, created_at, batch_id, signal"

// Record appends an entry. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(e.JobID) == "" {
		return 0, errors.New("record conversion: job id required")
	}
	if e.Kind == "" {
		return 0, errors.New("record conversion: outcome kind required")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO conversions (
                job_id, source, preset, original_path, processed_dir, output_dir,
                pages, outcome, artifact, exit_code, elapsed_ms, detail, created_at,
                batch_id, signal
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.JobID,
			e.Source,
			e.Preset,
			nullableString(e.OriginalPath),
			nullableString(e.ProcessedDir),
			nullableString(e.OutputDir),
			e.Pages,
			string(e.Kind),
			nullableString(e.Artifact),
			e.ExitCode,
			e.Elapsed.Milliseconds(),
			nullableString(e.Detail),
			created.UTC().Format(timeLayout),
			nullableString(e.BatchID),
			nullableString(e.Signal),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("record conversion %s: %w", e.JobID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first. A non-empty kind filters
// by outcome.
func (s *Store) Recent(ctx context.Context, limit int, kind outcome.Kind) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + entryColumns + " FROM conversions"
	args := []any{}
	if kind != "" {
		query += " WHERE outcome = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns the entry for jobID. A unique prefix of at least eight
// characters is accepted.
func (s *Store) Get(ctx context.Context, jobID string) (Entry, error) {
	ctx = ensureContext(ctx)
	jobID = strings.TrimSpace(jobID)
	if len(jobID) < 8 {
		return Entry{}, fmt.Errorf("job id %q: %w", jobID, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM conversions WHERE job_id = ? OR job_id LIKE ? ORDER BY id LIMIT 2",
		jobID, jobID+"%")
	if err != nil {
		return Entry{}, fmt.Errorf("query conversion: %w", err)
	}
	defer rows.Close()

	var matches []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return Entry{}, fmt.Errorf("scan conversion: %w", err)
		}
		matches = append(matches, entry)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, err
	}
	for _, entry := range matches {
		if entry.JobID == jobID {
			return entry, nil
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("job id %q: %w", jobID, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("job id prefix %q is ambiguous", jobID)
	}
}

// Summarize counts every recorded entry by outcome.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	ctx = ensureContext(ctx)
	summary := Summary{ByKind: make(map[outcome.Kind]int)}
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1), MAX(created_at) FROM conversions GROUP BY outcome")
	if err != nil {
		return summary, fmt.Errorf("summarize conversions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			count int
			last  sql.NullString
		)
		if err := rows.Scan(&kind, &count, &last); err != nil {
			return summary, fmt.Errorf("scan summary: %w", err)
		}
		summary.ByKind[outcome.Kind(kind)] = count
		summary.Total += count
		if ts := parseTime(last); ts.After(summary.Last) {
			summary.Last = ts
		}
	}
	return summary, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry        Entry
		kind         string
		originalPath sql.NullString
		processedDir sql.NullString
		outputDir    sql.NullString
		artifact     sql.NullString
		elapsedMS    int64
		detail       sql.NullString
		createdRaw   sql.NullString
		batchID      sql.NullString
		signal       sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.Source,
		&entry.Preset,
		&originalPath,
		&processedDir,
		&outputDir,
		&entry.Pages,
		&kind,
		&artifact,
		&entry.ExitCode,
		&elapsedMS,
		&detail,
		&createdRaw,
		&batchID,
		&signal,
	); err != nil {
		return Entry{}, err
	}
	entry.Kind = outcome.Kind(kind)
	entry.OriginalPath = originalPath.String
	entry.ProcessedDir = processedDir.String
	entry.OutputDir = outputDir.String
	entry.Artifact = artifact.String
	entry.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	entry.Detail = detail.String
	entry.CreatedAt = parseTime(createdRaw)
	entry.BatchID = batchID.String
	entry.Signal = signal.String
	return entry, nil
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	ts, err := time.Parse(timeLayout, raw.String)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
