package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists users. Absence is reported as ErrNotFound.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdateByID(ctx context.Context, id string, patch Patch) (User, error)
	DeleteByID(ctx context.Context, id string) error
}

// DB is the subset of pgxpool.Pool used by PostgresRepository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

const userColumns = `id, first_name, middle_name, last_name, age, phone, locations, role,
        COALESCE(branch_id::text, ''), email, password_hash, temporary_password_hash, status, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user. A taken email yields ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := parseID(user.ID)
	if err != nil {
		return err
	}
	locations, err := encodeLocations(user.Locations)
	if err != nil {
		return err
	}
	stampCreated(&user)
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, first_name, middle_name, last_name, age, phone, locations, role,
        branch_id, email, password_hash, temporary_password_hash, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		userID, user.FirstName, user.MiddleName, user.LastName, user.Age, user.Phone, locations, string(user.Role),
		nullableID(user.BranchID), NormalizeEmail(user.Email), user.PasswordHash, user.TemporaryPasswordHash,
		string(user.Status), user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// FindByEmail fetches a user by normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
	return scanUser(row)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := parseID(id)
	if err != nil {
		return User{}, err
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UpdateByID applies patch and returns the stored result.
func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, patch Patch) (User, error) {
	userID, err := parseID(id)
	if err != nil {
		return User{}, err
	}
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FirstName != nil {
		set("first_name", *patch.FirstName)
	}
	if patch.MiddleName != nil {
		set("middle_name", *patch.MiddleName)
	}
	if patch.LastName != nil {
		set("last_name", *patch.LastName)
	}
	if patch.Age != nil {
		set("age", *patch.Age)
	}
	if patch.Phone != nil {
		set("phone", *patch.Phone)
	}
	if patch.Locations != nil {
		locations, err := encodeLocations(*patch.Locations)
		if err != nil {
			return User{}, err
		}
		set("locations", locations)
	}
	if patch.Email != nil {
		set("email", NormalizeEmail(*patch.Email))
	}
	if patch.Role != nil {
		set("role", string(*patch.Role))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.BranchID != nil {
		set("branch_id", nullableID(*patch.BranchID))
	}
	set("updated_at", time.Now().UTC())
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if isUniqueViolation(err) {
		return User{}, ErrDuplicateEmail
	}
	return user, err
}

// DeleteByID removes a user.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	userID, err := parseID(id)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		locations []byte
		role      string
		status    string
		createdAt time.Time
		updatedAt time.Time
		user      User
	)
	err := row.Scan(&id, &user.FirstName, &user.MiddleName, &user.LastName, &user.Age, &user.Phone, &locations, &role,
		&user.BranchID, &user.Email, &user.PasswordHash, &user.TemporaryPasswordHash, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &user.Locations); err != nil {
			return User{}, fmt.Errorf("decode locations: %w", err)
		}
	}
	user.ID = id.String()
	user.Role = Role(role)
	user.Status = Status(status)
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return user, nil
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return parsed, nil
}

// ValidID reports whether id is a well-formed user identifier.
func ValidID(id string) bool {
	_, err := parseID(id)
	return err == nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func encodeLocations(locations []Location) ([]byte, error) {
	if locations == nil {
		locations = []Location{}
	}
	return json.Marshal(locations)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
