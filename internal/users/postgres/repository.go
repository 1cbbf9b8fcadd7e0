// Package postgres provides the PostgreSQL implementation of the users
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/confhub-io/confhub/internal/domain"
	"github.com/confhub-io/confhub/internal/pkg/ctxlog"
	"github.com/confhub-io/confhub/internal/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Statement catalog. One statement per store call, positional parameters
// only. The table name user is reserved in PostgreSQL and stays quoted.
const (
	stmtAddUser = `
		INSERT INTO "user" (email, password, name, surname)
		VALUES ($1, $2, $3, $4)
		RETURNING id, role_id
	`
	stmtGetUserByID = `
		SELECT id, email, password, name, surname, role_id
		FROM "user"
		WHERE id = $1
	`
	stmtGetUserByEmail = `
		SELECT id, email, password, name, surname, role_id
		FROM "user"
		WHERE email = $1
	`
	stmtGetUsers = `
		SELECT id, email, password, name, surname, role_id
		FROM "user"
	`
	stmtGetParticipants = `
		SELECT u.id, u.email, u.password, u.name, u.surname, u.role_id
		FROM "user" u
		JOIN user_has_event uhe ON u.id = uhe.user_id
		WHERE uhe.event_id = $1
		ORDER BY u.id
	`
	stmtGetSpeakers = `
		SELECT DISTINCT u.id, u.email, u.password, u.name, u.surname, u.role_id
		FROM "user" u
		JOIN report rp ON u.id = rp.speaker_id
		WHERE rp.event_id = $1
		ORDER BY u.id
	`
	stmtUpdateUser = `
		UPDATE "user"
		SET email = $1, name = $2, surname = $3
		WHERE id = $4
	`
	stmtUpdatePassword = `
		UPDATE "user"
		SET password = $1
		WHERE id = $2
	`
	stmtSetRole = `
		UPDATE "user"
		SET role_id = $1
		WHERE email = $2
	`
	stmtDeleteUser = `
		DELETE FROM "user"
		WHERE id = $1
	`
	stmtRegisterForEvent = `
		INSERT INTO user_has_event (user_id, event_id)
		VALUES ($1, $2)
	`
	stmtCancelRegistration = `
		DELETE FROM user_has_event
		WHERE user_id = $1 AND event_id = $2
	`
	stmtIsRegistered = `
		SELECT EXISTS (
			SELECT 1 FROM user_has_event
			WHERE user_id = $1 AND event_id = $2
		)
	`
)

// PostgreSQL error codes relevant to the user tables.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Constraint names from the migrations, used to map violations to
// domain sentinels.
const (
	constraintUserEmail         = "user_email_key"
	constraintRegistrationPK    = "user_has_event_pkey"
	constraintRegistrationUser  = "user_has_event_user_id_fkey"
	constraintRegistrationEvent = "user_has_event_event_id_fkey"
)

// ORDER BY columns per sort field. Anything outside this map never
// reaches the database.
var sortColumns = map[users.SortField]string{
	users.SortByID:      "id",
	users.SortByEmail:   "email",
	users.SortByName:    "name",
	users.SortBySurname: "surname",
}

// Repository implements users.Repository using PostgreSQL. Connections
// are acquired from the pool per statement and released with it.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL users repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new user. The store assigns the ID and the
// default visitor role; both are written back to the struct.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRow(ctx, stmtAddUser,
		user.Email,
		user.Password,
		user.Name,
		user.Surname,
	).Scan(&user.ID, &user.Role)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("add user %s", user.Email), err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, stmtGetUserByID, id).Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.Surname,
		&user.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, r.fail(ctx, fmt.Sprintf("get user %d", id), err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, stmtGetUserByEmail, email).Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.Name,
		&user.Surname,
		&user.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, r.fail(ctx, fmt.Sprintf("get user %s", email), err)
	}
	return &user, nil
}

// ListUsers retrieves all users in storage order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, stmtGetUsers)
	if err != nil {
		return nil, r.fail(ctx, "list users", err)
	}
	return r.collect(ctx, "list users", rows)
}

// SearchUsers retrieves one page of a filtered, ordered user listing.
func (r *Repository) SearchUsers(ctx context.Context, q users.Query) ([]domain.User, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, email, password, name, surname, role_id
		FROM "user"
		WHERE 1=1
	`
	var args []interface{}
	query, args = appendFilter(query, args, q.Filter)

	dir := "ASC"
	if q.SortDir == users.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortColumns[q.SortBy], dir)

	args = append(args, q.Limit, q.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.fail(ctx, "search users", err)
	}
	return r.collect(ctx, "search users", rows)
}

// CountUsers counts users under the same filter vocabulary as
// SearchUsers.
func (r *Repository) CountUsers(ctx context.Context, f users.Filter) (int, error) {
	if f.Role != nil && !f.Role.IsValid() {
		return 0, fmt.Errorf("%w: role %d", users.ErrInvalidQuery, int(*f.Role))
	}

	query := `SELECT COUNT(*) FROM "user" WHERE 1=1`
	var args []interface{}
	query, args = appendFilter(query, args, f)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, r.fail(ctx, "count users", err)
	}
	return count, nil
}

// ListParticipants retrieves an event's participants holding the given
// role. Visitors come from registrations, speakers from report
// assignments; other roles are rejected before any SQL runs.
func (r *Repository) ListParticipants(ctx context.Context, eventID int64, role domain.Role) ([]domain.User, error) {
	var stmt string
	switch role {
	case domain.RoleVisitor:
		stmt = stmtGetParticipants
	case domain.RoleSpeaker:
		stmt = stmtGetSpeakers
	default:
		return nil, fmt.Errorf("%w: participants for role %s", users.ErrInvalidRole, role)
	}

	rows, err := r.db.Query(ctx, stmt, eventID)
	if err != nil {
		return nil, r.fail(ctx, fmt.Sprintf("list %ss of event %d", role, eventID), err)
	}
	return r.collect(ctx, "list participants", rows)
}

// UpdateUser sets email, name and surname by ID. Password and role are
// never touched here.
func (r *Repository) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := r.db.Exec(ctx, stmtUpdateUser,
		user.Email,
		user.Name,
		user.Surname,
		user.ID,
	)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("update user %d", user.ID), err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// UpdateUserPassword sets the password hash by ID.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.Exec(ctx, stmtUpdatePassword, passwordHash, id)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("update password of user %d", id), err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// SetUserRole sets the role by email.
func (r *Repository) SetUserRole(ctx context.Context, email string, role domain.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: role %d", users.ErrInvalidRole, int(role))
	}

	result, err := r.db.Exec(ctx, stmtSetRole, int(role), email)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("set role of user %s", email), err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// DeleteUser deletes a user by ID. Registrations go with it via the
// cascade; reports keep their rows with the speaker cleared.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, stmtDeleteUser, id)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("delete user %d", id), err)
	}
	if result.RowsAffected() == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

// RegisterForEvent inserts a registration row.
func (r *Repository) RegisterForEvent(ctx context.Context, userID, eventID int64) error {
	_, err := r.db.Exec(ctx, stmtRegisterForEvent, userID, eventID)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("register user %d for event %d", userID, eventID), err)
	}
	return nil
}

// CancelRegistration removes a registration row. Removing an absent row
// is not an error.
func (r *Repository) CancelRegistration(ctx context.Context, userID, eventID int64) error {
	_, err := r.db.Exec(ctx, stmtCancelRegistration, userID, eventID)
	if err != nil {
		return r.fail(ctx, fmt.Sprintf("cancel registration of user %d for event %d", userID, eventID), err)
	}
	return nil
}

// IsRegistered reports whether the user is registered for the event.
func (r *Repository) IsRegistered(ctx context.Context, userID, eventID int64) (bool, error) {
	var registered bool
	err := r.db.QueryRow(ctx, stmtIsRegistered, userID, eventID).Scan(&registered)
	if err != nil {
		return false, r.fail(ctx, fmt.Sprintf("check registration of user %d for event %d", userID, eventID), err)
	}
	return registered, nil
}

// appendFilter appends WHERE conditions for the filter and returns the
// extended query and args.
func appendFilter(query string, args []interface{}, f users.Filter) (string, []interface{}) {
	if f.Role != nil {
		args = append(args, int(*f.Role))
		query += fmt.Sprintf(" AND role_id = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		query += fmt.Sprintf(" AND (email ILIKE $%d OR name ILIKE $%d OR surname ILIKE $%d)", n, n, n)
	}
	return query, args
}

// collect drains rows into a user slice.
func (r *Repository) collect(ctx context.Context, op string, rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()

	result := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.Password,
			&user.Name,
			&user.Surname,
			&user.Role,
		)
		if err != nil {
			return nil, r.fail(ctx, op, fmt.Errorf("scan user: %w", err))
		}
		result = append(result, user)
	}

	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, op, fmt.Errorf("iterate users: %w", err))
	}
	return result, nil
}

// fail logs the driver failure with its operation context and wraps it
// in a StoreError. Unique and foreign key violations on the user tables
// additionally get a domain sentinel folded into the chain.
func (r *Repository) fail(ctx context.Context, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintUserEmail:
			err = fmt.Errorf("%w: %w", users.ErrEmailExists, err)
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintRegistrationPK:
			err = fmt.Errorf("%w: %w", users.ErrAlreadyRegistered, err)
		case pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == constraintRegistrationUser:
			err = fmt.Errorf("%w: %w", users.ErrUserNotFound, err)
		case pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == constraintRegistrationEvent:
			err = fmt.Errorf("%w: %w", users.ErrEventNotFound, err)
		}
	}

	ctxlog.FromContext(ctx).Error("user store failure", "op", op, "error", err)
	return &users.StoreError{Op: op, Err: err}
}
