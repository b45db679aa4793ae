package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/round-matches/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const usersTable = "users"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("user email conflict")
)

// UserRepository is the participant store. Participants are never deleted.
type UserRepository interface {
	Create(ctx context.Context, user *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
	Update(ctx context.Context, user *models.Participant) error
	List(ctx context.Context) ([]*models.Participant, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

var userColumns = []string{"id", "name", "email", "role", "style"}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.Participant) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTable(ctx, tx, usersTable); err != nil {
			return err
		}
		id, err := nextID(ctx, tx, usersTable)
		if err != nil {
			return err
		}
		_, err = execQ(ctx, tx, psql.Insert(usersTable).
			Columns(userColumns...).
			Values(id, user.Name, normalizeEmail(user.Email), user.Role, user.Style))
		if err != nil {
			return r.handleUserError(err)
		}
		user.ID = id
		user.Email = normalizeEmail(user.Email)
		return nil
	})
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	return r.scanOne(ctx, sq.Eq{"id": id})
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	return r.scanOne(ctx, sq.Eq{"email": normalizeEmail(email)})
}

func (r *postgresUserRepository) Update(ctx context.Context, user *models.Participant) error {
	result, err := execQ(ctx, r.db, psql.Update(usersTable).
		Set("name", user.Name).
		Set("role", user.Role).
		Set("style", user.Style).
		Where(sq.Eq{"id": user.ID}))
	if err != nil {
		return r.handleUserError(err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) List(ctx context.Context) ([]*models.Participant, error) {
	rows, err := queryQ(ctx, r.db, psql.Select(userColumns...).From(usersTable).OrderBy("id ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.Participant, 0)
	for rows.Next() {
		var u models.Participant
		if scanErr := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Style); scanErr != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", scanErr)
		}
		users = append(users, &u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during user rows iteration: %w", err)
	}
	return users, nil
}

func (r *postgresUserRepository) scanOne(ctx context.Context, where sq.Eq) (*models.Participant, error) {
	row, err := rowQ(ctx, r.db, psql.Select(userColumns...).From(usersTable).Where(where))
	if err != nil {
		return nil, err
	}
	var u models.Participant
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Style); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *postgresUserRepository) handleUserError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "users_email_key" {
		return ErrUserEmailConflict
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
