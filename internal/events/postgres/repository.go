// Package postgres provides the PostgreSQL implementation of the events
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes relevant to the event tables.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// ORDER BY columns per sort field.
var sortColumns = map[events.SortField]string{
	events.SortByID:    "id",
	events.SortByTitle: "title",
	events.SortByDate:  "date",
}

// Repository implements events.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL events repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateEvent creates a new event. The store assigns the ID and writes
// it back to the struct.
func (r *Repository) CreateEvent(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO event (title, date, location, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		event.Title,
		event.Date,
		event.Location,
		event.Description,
	).Scan(&event.ID)
	if err != nil {
		if isUniqueViolation(err, "event_title_key") {
			return fmt.Errorf("create event %q: %w", event.Title, events.ErrTitleExists)
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEventByID retrieves an event by ID.
func (r *Repository) GetEventByID(ctx context.Context, id int64) (*domain.Event, error) {
	query := `
		SELECT id, title, date, location, description
		FROM event
		WHERE id = $1
	`
	var event domain.Event
	err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.Location,
		&event.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &event, nil
}

// GetEventByTitle retrieves an event by title.
func (r *Repository) GetEventByTitle(ctx context.Context, title string) (*domain.Event, error) {
	query := `
		SELECT id, title, date, location, description
		FROM event
		WHERE title = $1
	`
	var event domain.Event
	err := r.db.QueryRow(ctx, query, title).Scan(
		&event.ID,
		&event.Title,
		&event.Date,
		&event.Location,
		&event.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event %q: %w", title, err)
	}
	return &event, nil
}

// ListEvents retrieves one page of a filtered, ordered event listing.
func (r *Repository) ListEvents(ctx context.Context, q events.Query) ([]domain.Event, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, title, date, location, description
		FROM event
		WHERE 1=1
	`
	var args []interface{}
	query, args = appendFilter(query, args, q.Filter)

	dir := "ASC"
	if q.SortDir == events.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortColumns[q.SortBy], dir)

	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Event, 0)
	for rows.Next() {
		var event domain.Event
		err := rows.Scan(
			&event.ID,
			&event.Title,
			&event.Date,
			&event.Location,
			&event.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

// CountEvents counts events under the same filter vocabulary as
// ListEvents.
func (r *Repository) CountEvents(ctx context.Context, f events.Filter) (int, error) {
	query := `SELECT COUNT(*) FROM event WHERE 1=1`
	var args []interface{}
	query, args = appendFilter(query, args, f)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// UpdateEvent updates title, date, location and description by ID.
func (r *Repository) UpdateEvent(ctx context.Context, event *domain.Event) error {
	query := `
		UPDATE event
		SET title = $1, date = $2, location = $3, description = $4
		WHERE id = $5
	`
	result, err := r.db.Exec(ctx, query,
		event.Title,
		event.Date,
		event.Location,
		event.Description,
		event.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "event_title_key") {
			return fmt.Errorf("update event %d: %w", event.ID, events.ErrTitleExists)
		}
		return fmt.Errorf("update event %d: %w", event.ID, err)
	}
	if result.RowsAffected() == 0 {
		return events.ErrEventNotFound
	}
	return nil
}

// DeleteEvent deletes an event by ID. Registrations and reports go with
// it via the cascade.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) error {
	query := `DELETE FROM event WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return events.ErrEventNotFound
	}
	return nil
}

// CreateReport creates a new report for an event.
func (r *Repository) CreateReport(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO report (topic, event_id, speaker_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		report.Topic,
		report.EventID,
		report.SpeakerID,
	).Scan(&report.ID)
	if err != nil {
		switch {
		case isForeignKeyViolation(err, "report_event_id_fkey"):
			return fmt.Errorf("create report: %w", events.ErrEventNotFound)
		case isForeignKeyViolation(err, "report_speaker_id_fkey"):
			return fmt.Errorf("create report: %w", events.ErrSpeakerNotFound)
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetReportByID retrieves a report by ID.
func (r *Repository) GetReportByID(ctx context.Context, id int64) (*domain.Report, error) {
	query := `
		SELECT id, topic, event_id, speaker_id
		FROM report
		WHERE id = $1
	`
	var report domain.Report
	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.Topic,
		&report.EventID,
		&report.SpeakerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrReportNotFound
		}
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &report, nil
}

// ListEventReports retrieves all reports of an event.
func (r *Repository) ListEventReports(ctx context.Context, eventID int64) ([]domain.Report, error) {
	query := `
		SELECT id, topic, event_id, speaker_id
		FROM report
		WHERE event_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list reports of event %d: %w", eventID, err)
	}
	defer rows.Close()

	result := make([]domain.Report, 0)
	for rows.Next() {
		var report domain.Report
		err := rows.Scan(
			&report.ID,
			&report.Topic,
			&report.EventID,
			&report.SpeakerID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return result, nil
}

// SetReportSpeaker assigns a speaker to a report.
func (r *Repository) SetReportSpeaker(ctx context.Context, reportID, speakerID int64) error {
	query := `UPDATE report SET speaker_id = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, speakerID, reportID)
	if err != nil {
		if isForeignKeyViolation(err, "report_speaker_id_fkey") {
			return fmt.Errorf("set speaker of report %d: %w", reportID, events.ErrSpeakerNotFound)
		}
		return fmt.Errorf("set speaker of report %d: %w", reportID, err)
	}
	if result.RowsAffected() == 0 {
		return events.ErrReportNotFound
	}
	return nil
}

// ClearReportSpeaker removes the speaker assignment from a report.
func (r *Repository) ClearReportSpeaker(ctx context.Context, reportID int64) error {
	query := `UPDATE report SET speaker_id = NULL WHERE id = $1`
	result, err := r.db.Exec(ctx, query, reportID)
	if err != nil {
		return fmt.Errorf("clear speaker of report %d: %w", reportID, err)
	}
	if result.RowsAffected() == 0 {
		return events.ErrReportNotFound
	}
	return nil
}

// DeleteReport deletes a report by ID.
func (r *Repository) DeleteReport(ctx context.Context, id int64) error {
	query := `DELETE FROM report WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete report %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return events.ErrReportNotFound
	}
	return nil
}

// appendFilter appends WHERE conditions for the filter and returns the
// extended query and args.
func appendFilter(query string, args []interface{}, f events.Filter) (string, []interface{}) {
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (title ILIKE $%d OR location ILIKE $%d)", n, n)
	}
	if f.Upcoming {
		query += " AND date >= CURRENT_DATE"
	}
	return query, args
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == constraint
}
