package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"fintool-server/src/models"
)

var ErrVaultNotFound = errors.New("user vault not found")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserVault struct {
	UserID    int64
	Document  []byte
	UpdatedAt time.Time
}

func GetUserVault(ctx context.Context, db DBTX, userID int64) (*UserVault, error) {
	query := `SELECT user_id, document, updated_at FROM user_vaults WHERE user_id = $1`

	var vault UserVault
	err := db.QueryRow(ctx, query, userID).Scan(&vault.UserID, &vault.Document, &vault.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &vault, nil
}

// SaveUserVault overwrites the whole document of a user.
func SaveUserVault(ctx context.Context, db DBTX, userID int64, document []byte) error {
	query := `
		INSERT INTO user_vaults (user_id, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`
	if _, err := db.Exec(ctx, query, userID, document); err != nil {
		return fmt.Errorf("save user vault: %w", err)
	}
	return nil
}

func ListUserVaultIDs(ctx context.Context, db DBTX) ([]int64, error) {
	rows, err := db.Query(ctx, `SELECT user_id FROM user_vaults ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DocumentCache holds serialized documents by user id.
type DocumentCache interface {
	Get(userID int64) ([]byte, bool)
	Set(userID int64, doc []byte)
	Del(userID int64)
}

// UserStore persists user vault documents in Postgres, optionally fronted
// by a cache of the serialized (still encrypted) documents.
//
// Every save bumps generation under mu. A read only fills the cache when no
// save completed while it was querying, so a document read before a
// concurrent save can never replace the newer cached copy.
type UserStore struct {
	db    DBTX
	cache DocumentCache

	mu         sync.Mutex
	generation uint64
}

func NewUserStore(db DBTX, cache DocumentCache) *UserStore {
	return &UserStore{db: db, cache: cache}
}

// GetUser returns an empty document for a user that has never stored one.
func (s *UserStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	if s.cache != nil {
		if doc, ok := s.cache.Get(userID); ok {
			return decodeUser(userID, doc, time.Time{})
		}
	}

	generation := s.currentGeneration()
	vault, err := GetUserVault(ctx, s.db, userID)
	if errors.Is(err, ErrVaultNotFound) {
		return &models.User{ID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(userID, vault.Document, vault.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.fill(userID, generation, vault.Document)
	return user, nil
}

func (s *UserStore) SaveUser(ctx context.Context, user *models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user vault: %w", err)
	}

	if err := SaveUserVault(ctx, s.db, user.ID, doc); err != nil {
		s.replace(user.ID, nil)
		return err
	}

	s.replace(user.ID, doc)
	return nil
}

func (s *UserStore) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// fill caches a document read from the database unless a save finished
// after the read started.
func (s *UserStore) fill(userID int64, generation uint64, doc []byte) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return
	}
	s.cache.Set(userID, doc)
}

// replace records a save. A nil doc drops the cached copy.
func (s *UserStore) replace(userID int64, doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cache == nil {
		return
	}
	if doc == nil {
		s.cache.Del(userID)
		return
	}
	s.cache.Set(userID, doc)
}

func (s *UserStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	return ListUserVaultIDs(ctx, s.db)
}

func decodeUser(userID int64, doc []byte, updatedAt time.Time) (*models.User, error) {
	user := &models.User{ID: userID, UpdatedAt: updatedAt}
	if len(doc) == 0 {
		return user, nil
	}
	if err := json.Unmarshal(doc, user); err != nil {
		return nil, fmt.Errorf("decode user vault %d: %w", userID, err)
	}
	return user, nil
}
