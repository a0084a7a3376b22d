package users

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"easysheets/internal/platform/secretbox"
)

// PostgresRepository implements Repository on PostgreSQL. Provider tokens are
// sealed with box before they are written; refresh tokens are looked up
// through a SHA-256 digest column so the sealed value never appears in a WHERE.
type PostgresRepository struct {
	db  *sqlx.DB
	box *secretbox.Box
}

// NewPostgresRepository creates a PostgresRepository. A nil box stores tokens
// in plaintext.
func NewPostgresRepository(db *sqlx.DB, box *secretbox.Box) *PostgresRepository {
	return &PostgresRepository{db: db, box: box}
}

const selectUser = `
	SELECT id, google_id, email, name, picture, access_token, refresh_token, token_expiry, created_at, updated_at
	FROM users
`

// FindByID looks up a user by primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.get(ctx, selectUser+`WHERE id = $1`, id)
}

// FindByGoogleID looks up a user by Google subject.
func (r *PostgresRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	return r.get(ctx, selectUser+`WHERE google_id = $1`, googleID)
}

// FindByRefreshToken looks up the user whose stored refresh token matches.
func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*User, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return r.get(ctx, selectUser+`WHERE refresh_token_hash = $1`, hashToken(refreshToken))
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser(r.box)
}

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (id, google_id, email, name, picture, access_token, refresh_token, refresh_token_hash, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	access, err := r.box.Seal(user.AccessToken)
	if err != nil {
		return User{}, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.box.Seal(user.RefreshToken)
	if err != nil {
		return User{}, fmt.Errorf("seal refresh token: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		access,
		refresh,
		nullableHash(user.RefreshToken),
		user.TokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile refreshes name, email and picture.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile Profile) error {
	const query = `
		UPDATE users
		SET email = $2, name = $3, picture = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, profile.Email, profile.Name, profile.Picture, time.Now().UTC())
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// UpdateTokens overwrites the access token and expiry when the update carries
// a new access token. The refresh token and its digest change only when the
// update carries a new one.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, id uuid.UUID, update TokenUpdate) error {
	const query = `
		UPDATE users
		SET access_token = COALESCE($2, access_token),
			refresh_token = COALESCE($3, refresh_token),
			refresh_token_hash = COALESCE($4, refresh_token_hash),
			token_expiry = CASE WHEN $2::text IS NULL THEN token_expiry ELSE $5 END,
			updated_at = $6
		WHERE id = $1
	`

	var access *string
	if update.AccessToken != "" {
		sealed, err := r.box.Seal(update.AccessToken)
		if err != nil {
			return fmt.Errorf("seal access token: %w", err)
		}
		access = &sealed
	}

	var refresh *string
	if update.RefreshToken != "" {
		sealed, err := r.box.Seal(update.RefreshToken)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		refresh = &sealed
	}

	result, err := r.db.ExecContext(ctx, query,
		id,
		access,
		refresh,
		nullableHash(update.RefreshToken),
		update.Expiry,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// hashToken returns the SHA-256 hash of the token as a hex string.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func nullableHash(token string) *string {
	if token == "" {
		return nil
	}
	h := hashToken(token)
	return &h
}

type userRow struct {
	ID           uuid.UUID  `db:"id"`
	GoogleID     string     `db:"google_id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	Picture      string     `db:"picture"`
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	TokenExpiry  *time.Time `db:"token_expiry"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (r *userRow) toUser(box *secretbox.Box) (*User, error) {
	access, err := box.Open(r.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	refresh, err := box.Open(r.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}

	return &User{
		ID:           r.ID,
		GoogleID:     r.GoogleID,
		Email:        r.Email,
		Name:         r.Name,
		Picture:      r.Picture,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  r.TokenExpiry,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}
