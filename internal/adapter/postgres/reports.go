package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

const reportColumns = `id, latitude, longitude, address, city, region, category, title,
       description, source_key, source, status, confirmed, occurred_at, ingested_at`

// ReportRepository stores accepted reports. It also answers dedup queries
// directly against the reports table, so Add is a no-op: the inserted row
// already carries its source key.
type ReportRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewReportRepository creates a repository over db.
func NewReportRepository(db *sql.DB, logger *slog.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

// Create inserts a report.
func (r *ReportRepository) Create(ctx context.Context, rep domain.Report) error {
	query := `
INSERT INTO reports (` + reportColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
`
	_, err := r.db.ExecContext(ctx, query,
		rep.ID,
		rep.Point.Lat,
		rep.Point.Lon,
		nullString(rep.Address),
		nullString(rep.City),
		nullString(rep.Region),
		string(rep.Category),
		rep.Title,
		rep.Description,
		rep.SourceKey,
		string(rep.Source),
		string(rep.Status),
		rep.Confirmed,
		rep.OccurredAt,
		rep.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rep.ID, err)
	}
	return nil
}

// Get loads a report by id, returning domain.ErrReportNotFound if absent.
func (r *ReportRepository) Get(ctx context.Context, id string) (domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1;`
	rep, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return rep, nil
}

// ListByStatus returns up to limit reports in status, newest first.
func (r *ReportRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE status = $1 ORDER BY ingested_at DESC LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// SetStatus updates the moderation status of a report.
func (r *ReportRepository) SetStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reports SET status = $2 WHERE id = $1;`, id, string(status))
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrReportNotFound
	}
	return nil
}

func (r *ReportRepository) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE source_key = $1);`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query source key: %w", err)
	}
	return exists, nil
}

func (r *ReportRepository) HasAddressContaining(ctx context.Context, fragment string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE address ILIKE '%' || $1 || '%' ESCAPE '\');`,
		escapeLike(fragment),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query address: %w", err)
	}
	return exists, nil
}

func (r *ReportRepository) Add(context.Context, string, string) error {
	return nil
}

// CheckReadiness pings the database.
func (r *ReportRepository) CheckReadiness(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (domain.Report, error) {
	var (
		rep                   domain.Report
		address, city, region sql.NullString
		category, source      string
		status                string
	)
	err := row.Scan(
		&rep.ID,
		&rep.Point.Lat,
		&rep.Point.Lon,
		&address,
		&city,
		&region,
		&category,
		&rep.Title,
		&rep.Description,
		&rep.SourceKey,
		&source,
		&status,
		&rep.Confirmed,
		&rep.OccurredAt,
		&rep.IngestedAt,
	)
	if err != nil {
		return domain.Report{}, err
	}
	rep.Address = address.String
	rep.City = city.String
	rep.Region = region.String
	rep.Category = domain.Category(category)
	rep.Source = domain.Source(source)
	rep.Status = domain.Status(status)
	return rep, nil
}
