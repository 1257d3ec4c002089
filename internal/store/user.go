package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/profai/internal/model"
)

const userColumns = `id, email, username, password_hash, full_name, grade, school, avatar,
	ai_style, xp, coins, level, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Grade, &u.School,
		&u.Avatar, &u.AIStyle, &u.XP, &u.Coins, &u.Level, &u.Active, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Level = model.LevelFor(u.XP)
	return &u, nil
}

// CreateUser inserts a new user and returns it with its id and timestamps set.
func (s *Store) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.AIStyle == "" {
		u.AIStyle = model.DefaultStyle
	}
	u.CreatedAt = now()
	u.Level = model.LevelFor(u.XP)
	u.Active = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Grade, u.School, u.Avatar,
		u.AIStyle, u.XP, u.Coins, u.Level, u.Active, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %s: %w", u.Username, ErrDuplicate)
		}
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return nil, err
	}
	slog.Info("created user", "id", u.ID, "username", u.Username)
	return &u, nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByID returns a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

// UpdateProfile applies the non-nil fields of p to the user.
func (s *Store) UpdateProfile(ctx context.Context, userID string, p model.ProfileUpdate) error {
	if p.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("full_name", p.FullName)
	add("grade", p.Grade)
	add("school", p.School)
	add("ai_style", p.AIStyle)
	add("avatar", p.Avatar)
	args = append(args, userID)

	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// AddRewards atomically increments the user's xp and coins and refreshes the stored level.
func (s *Store) AddRewards(ctx context.Context, userID string, xp, coins int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET xp = xp + ?, coins = coins + ?, level = MAX(1, (xp + ?) / 100 + 1)
		 WHERE id = ?`,
		xp, coins, xp, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("add rewards: user %s not found", userID)
	}
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
