package identity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// countingDirectory records the ids it was asked for
type countingDirectory struct {
	next  Directory
	calls [][]string
}

func (c *countingDirectory) Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error) {
	c.calls = append(c.calls, ids)
	return c.next.Lookup(ctx, ids)
}

func newPeople() *db.MemDB {
	m := db.NewMemDB()
	m.AddPeople(
		db.Person{ID: "p-1", FirstName: "Ada", LastName: "Lovelace", Role: "overseer"},
		db.Person{ID: "p-2", FirstName: "Alan", LastName: "Turing", Role: "KEYMAN"},
	)
	return m
}

func TestStoreDirectory_Lookup(t *testing.T) {
	dir := NewStoreDirectory(newPeople())

	found, err := dir.Lookup(context.Background(), []string{"p-1", "missing"})
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "Ada Lovelace", found["p-1"].DisplayName())
	assert.Equal(t, model.RoleOverseer, found["p-1"].Role, "roles are normalised to upper case")
}

func TestCachedDirectory_ReadThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	next := &countingDirectory{next: NewStoreDirectory(newPeople())}
	cache := NewCachedDirectory(client, next, time.Minute, zap.NewNop())

	cached, err := json.Marshal(model.Identity{ID: "p-1", FirstName: "Ada", LastName: "Lovelace", Role: model.RoleOverseer})
	require.NoError(t, err)
	fresh, err := json.Marshal(model.Identity{ID: "p-2", FirstName: "Alan", LastName: "Turing", Role: model.RoleKeyman})
	require.NoError(t, err)

	mock.ExpectMGet(cacheKey("p-1"), cacheKey("p-2"), cacheKey("nobody")).SetVal([]interface{}{string(cached), nil, nil})
	mock.ExpectSet(cacheKey("p-2"), fresh, time.Minute).SetVal("OK")

	found, err := cache.Lookup(context.Background(), []string{"p-1", "p-2", "nobody"})
	require.NoError(t, err)

	assert.Len(t, found, 2)
	assert.Equal(t, "Ada", found["p-1"].FirstName)
	assert.Equal(t, "Alan", found["p-2"].FirstName)
	require.Len(t, next.calls, 1)
	assert.Equal(t, []string{"p-2", "nobody"}, next.calls[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDirectory_AllHits(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	next := &countingDirectory{next: NewStoreDirectory(newPeople())}
	cache := NewCachedDirectory(client, next, time.Minute, zap.NewNop())

	cached, err := json.Marshal(model.Identity{ID: "p-1", FirstName: "Ada", LastName: "Lovelace", Role: model.RoleOverseer})
	require.NoError(t, err)
	mock.ExpectMGet(cacheKey("p-1")).SetVal([]interface{}{string(cached)})

	found, err := cache.Lookup(context.Background(), []string{"p-1"})
	require.NoError(t, err)

	assert.Len(t, found, 1)
	assert.Empty(t, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDirectory_RedisDownFallsBack(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	next := &countingDirectory{next: NewStoreDirectory(newPeople())}
	cache := NewCachedDirectory(client, next, time.Minute, zap.NewNop())

	fresh, err := json.Marshal(model.Identity{ID: "p-1", FirstName: "Ada", LastName: "Lovelace", Role: model.RoleOverseer})
	require.NoError(t, err)

	mock.ExpectMGet(cacheKey("p-1")).SetErr(errors.New("connection refused"))
	mock.ExpectSet(cacheKey("p-1"), fresh, time.Minute).SetErr(errors.New("connection refused"))

	found, err := cache.Lookup(context.Background(), []string{"p-1"})
	require.NoError(t, err)

	assert.Len(t, found, 1)
	require.Len(t, next.calls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedDirectory_Invalidate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	cache := NewCachedDirectory(client, NewStoreDirectory(newPeople()), time.Minute, zap.NewNop())

	mock.ExpectDel(cacheKey("p-1"), cacheKey("p-2")).SetVal(2)

	require.NoError(t, cache.Invalidate(context.Background(), "p-1", "p-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
