package db

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"fintool-server/src/models"
	"fintool-server/src/vault"
)

// fakeDB emulates the user_vaults table closely enough for the queries in
// this package.
type fakeDB struct {
	mu        sync.Mutex
	docs      map[int64][]byte
	updatedAt time.Time
	reads     int
	writes    int
	queryErr  error
	execErr   error
	// afterRead runs once the row has been read, outside the lock.
	afterRead func()
}

func newFakeDB() *fakeDB {
	return &fakeDB{docs: make(map[int64][]byte), updatedAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.docs[args[0].(int64)] = append([]byte(nil), args[1].([]byte)...)
	f.writes++
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	rows := &fakeRows{}
	for id := range f.docs {
		rows.ids = append(rows.ids, id)
	}
	return rows, nil
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	row := f.queryRow(args[0].(int64))
	if hook := f.afterRead; hook != nil {
		f.afterRead = nil
		hook()
	}
	return row
}

func (f *fakeDB) queryRow(id int64) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.queryErr != nil {
		return fakeRow{err: f.queryErr}
	}
	doc, ok := f.docs[id]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{id: id, doc: doc, updatedAt: f.updatedAt}
}

type fakeRow struct {
	id        int64
	doc       []byte
	updatedAt time.Time
	err       error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	*dest[1].(*[]byte) = append([]byte(nil), r.doc...)
	*dest[2].(*time.Time) = r.updatedAt
	return nil
}

type fakeRows struct {
	ids []int64
	pos int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.ids)
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*int64) = r.ids[r.pos-1]
	return nil
}

// mapCache is a synchronous DocumentCache.
type mapCache struct {
	docs map[int64][]byte
}

func (c *mapCache) Get(userID int64) ([]byte, bool) {
	doc, ok := c.docs[userID]
	return doc, ok
}

func (c *mapCache) Set(userID int64, doc []byte) { c.docs[userID] = doc }
func (c *mapCache) Del(userID int64)             { delete(c.docs, userID) }

type UserStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *fakeDB
	cache *mapCache
	store *UserStore
	codec *vault.Codec
}

func (s *UserStoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = newFakeDB()
	s.cache = &mapCache{docs: make(map[int64][]byte)}
	s.store = NewUserStore(s.db, s.cache)

	material := make([]byte, vault.KeySize)
	ring, err := vault.NewKeyRing("v1", vault.KeySpec{ID: "v1", Material: material})
	s.Require().NoError(err)
	s.codec = vault.NewCodec(ring)
}

func TestUserStoreTestSuite(t *testing.T) {
	suite.Run(t, new(UserStoreTestSuite))
}

func (s *UserStoreTestSuite) TestUnknownUserIsEmpty() {
	user, err := s.store.GetUser(s.ctx, 5)
	s.Require().NoError(err)
	s.Equal(int64(5), user.ID)
	s.Nil(user.PlaidAccessToken)
	s.Empty(s.cache.docs)
}

func (s *UserStoreTestSuite) TestSaveThenLoad() {
	user := &models.User{ID: 5}
	s.Require().NoError(user.SetAccessToken(s.codec, "access-sandbox-1"))
	s.Require().NoError(s.store.SaveUser(s.ctx, user))
	s.Equal(1, s.db.writes)
	s.NotContains(string(s.db.docs[5]), "access-sandbox-1")

	loaded, err := s.store.GetUser(s.ctx, 5)
	s.Require().NoError(err)
	s.Equal("access-sandbox-1", loaded.AccessToken(s.codec))
	s.Equal(0, s.db.reads)
}

func (s *UserStoreTestSuite) TestLoadPopulatesCache() {
	user := &models.User{ID: 9}
	s.Require().NoError(user.SetItemID(s.codec, "item-9"))
	raw, err := json.Marshal(user)
	s.Require().NoError(err)
	s.db.docs[9] = raw

	loaded, err := s.store.GetUser(s.ctx, 9)
	s.Require().NoError(err)
	s.Equal("item-9", loaded.ItemID(s.codec))
	s.Equal(s.db.updatedAt, loaded.UpdatedAt)
	s.Equal(raw, s.cache.docs[9])

	_, err = s.store.GetUser(s.ctx, 9)
	s.Require().NoError(err)
	s.Equal(1, s.db.reads)
}

func (s *UserStoreTestSuite) TestReadRacingSaveKeepsNewerCachedDocument() {
	old := &models.User{ID: 9}
	s.Require().NoError(old.SetCursor(s.codec, "cursor-old"))
	raw, err := json.Marshal(old)
	s.Require().NoError(err)
	s.db.docs[9] = raw

	// a save lands between the database read and the cache fill
	s.db.afterRead = func() {
		fresh := &models.User{ID: 9}
		s.Require().NoError(fresh.SetCursor(s.codec, "cursor-new"))
		s.Require().NoError(s.store.SaveUser(s.ctx, fresh))
	}

	loaded, err := s.store.GetUser(s.ctx, 9)
	s.Require().NoError(err)
	s.Equal("cursor-old", loaded.Cursor(s.codec))

	loaded, err = s.store.GetUser(s.ctx, 9)
	s.Require().NoError(err)
	s.Equal("cursor-new", loaded.Cursor(s.codec))
	s.Equal(1, s.db.reads)
}

func (s *UserStoreTestSuite) TestFailedSaveDropsCachedDocument() {
	s.cache.docs[5] = []byte(`{}`)
	s.db.execErr = errors.New("connection reset")

	err := s.store.SaveUser(s.ctx, &models.User{ID: 5})
	s.ErrorIs(err, s.db.execErr)
	s.NotContains(s.cache.docs, int64(5))
}

func (s *UserStoreTestSuite) TestQueryErrors() {
	s.db.queryErr = errors.New("connection refused")

	_, err := s.store.GetUser(s.ctx, 1)
	s.ErrorIs(err, s.db.queryErr)

	_, err = s.store.ListUserIDs(s.ctx)
	s.ErrorIs(err, s.db.queryErr)
}

func (s *UserStoreTestSuite) TestCorruptDocument() {
	s.db.docs[3] = []byte(`{"plaidCursor":`)
	_, err := s.store.GetUser(s.ctx, 3)
	s.Error(err)
}

func (s *UserStoreTestSuite) TestListUserIDs() {
	for _, id := range []int64{3, 1, 2} {
		s.Require().NoError(s.store.SaveUser(s.ctx, &models.User{ID: id}))
	}
	ids, err := s.store.ListUserIDs(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]int64{1, 2, 3}, ids)
}

func (s *UserStoreTestSuite) TestWithoutCache() {
	store := NewUserStore(s.db, nil)
	s.Require().NoError(store.SaveUser(s.ctx, &models.User{ID: 4}))
	_, err := store.GetUser(s.ctx, 4)
	s.Require().NoError(err)
	s.Equal(1, s.db.reads)
}
