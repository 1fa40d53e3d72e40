package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/start-berlin/cockpit/pkg/models"
	"github.com/start-berlin/cockpit/pkg/persistence"
)

type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, email, first_name, last_name, name, personal_email,
	batch_number, department, status, created_at, updated_at`

// UpsertByEmail inserts the user or, when the company email already exists,
// updates the mutable profile fields of the existing row.
func (ur *UserRepository) UpsertByEmail(ctx context.Context, user *models.User) (string, error) {
	if user.ID == "" {
		user.ID = "usr_" + uuid.New().String()
	}

	now := time.Now().UTC()

	var id string

	err := ur.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, name, personal_email,
			batch_number, department, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $10)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			name = EXCLUDED.name,
			personal_email = EXCLUDED.personal_email,
			batch_number = EXCLUDED.batch_number,
			department = EXCLUDED.department,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, user.ID, user.Email, user.FirstName, user.LastName, user.Name, user.PersonalEmail,
		user.BatchNumber, user.Department, string(user.Status), now).Scan(&id)
	if err != nil {
		return "", &persistence.DirectoryError{Op: "UpsertByEmail", Entity: "user", Key: user.Email, Err: err}
	}

	user.ID = id

	return id, nil
}

func (ur *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := ur.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindByEmail", Entity: "user", Key: email, Err: err}
	}

	return user, nil
}

func (ur *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	row := ur.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "user", Key: id, Err: err}
	}

	return user, nil
}

func (ur *UserRepository) ListByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error) {
	rows, err := ur.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, &persistence.DirectoryError{Op: "ListByStatus", Entity: "user", Key: string(status), Err: err}
	}
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, &persistence.DirectoryError{Op: "ListByStatus", Entity: "user", Key: string(status), Err: err}
		}

		users = append(users, user)
	}

	return users, rows.Err()
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user       models.User
		department sql.NullString
		status     string
	)

	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Name,
		&user.PersonalEmail, &user.BatchNumber, &department, &status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.Department = department.String
	user.Status = models.UserStatus(status)

	return &user, nil
}

type GroupRepository struct {
	db *sql.DB
}

func (gr *GroupRepository) InsertIfAbsent(ctx context.Context, group *models.Group) error {
	_, err := gr.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, slug, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO NOTHING
	`, group.ID, group.Name, group.Slug)
	if err != nil {
		return &persistence.DirectoryError{Op: "InsertIfAbsent", Entity: "group", Key: group.ID, Err: err}
	}

	return nil
}

func (gr *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group

	err := gr.db.QueryRowContext(ctx, `SELECT id, name, slug, created_at FROM groups WHERE id = $1`, id).
		Scan(&group.ID, &group.Name, &group.Slug, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrGroupNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindByID", Entity: "group", Key: id, Err: err}
	}

	return &group, nil
}

func (gr *GroupRepository) FindBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group

	err := gr.db.QueryRowContext(ctx, `SELECT id, name, slug, created_at FROM groups WHERE slug = $1`, slug).
		Scan(&group.ID, &group.Name, &group.Slug, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrGroupNotFound
		}

		return nil, &persistence.DirectoryError{Op: "FindBySlug", Entity: "group", Key: slug, Err: err}
	}

	return &group, nil
}
