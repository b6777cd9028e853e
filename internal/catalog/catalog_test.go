package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// createTestCatalog opens a fresh catalog with a fixed clock.
func createTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c.WithClock(func() time.Time { return fixedTime })
}

// seedObject creates /zone/home/obj with a good replica on resource a.
func seedObject(t *testing.T, c *Catalog) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.MakeCollection(ctx, "/zone/home", true))
	require.NoError(t, c.Put(ctx, "/zone/home/obj", "a", "rods", 42, false))
	return "/zone/home/obj"
}

func statuses(t *testing.T, c *Catalog, p string) map[string]int {
	t.Helper()
	obj, err := c.Object(context.Background(), p)
	require.NoError(t, err)
	got := map[string]int{}
	for _, r := range obj.Replicas {
		got[r.Hierarchy] = r.Status
	}
	return got
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	for i := 0; i < 3; i++ {
		c, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		c.Close()
	}

	c, err := Open(path)
	require.NoError(t, err)
	defer c.Close()

	for _, table := range []string{"collections", "data_objects", "replicas"} {
		var name string
		err := c.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	_, err = c.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/catalog.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	c := &Catalog{db: nil}
	assert.NoError(t, c.Close())
}

func TestPragmas(t *testing.T) {
	c := createTestCatalog(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMakeCollection(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)

	err := c.MakeCollection(ctx, "/zone/home/scratch", false)
	assert.True(t, IsCode(err, CodeUnknownCollection), "got %v", err)

	require.NoError(t, c.MakeCollection(ctx, "/zone/home/scratch", true))
	require.NoError(t, c.MakeCollection(ctx, "/zone/home/scratch", true), "parents tolerates existing")

	err = c.MakeCollection(ctx, "/zone/home/scratch", false)
	assert.True(t, IsCode(err, CodeAlreadyExists), "got %v", err)

	for _, p := range []string{"/zone", "/zone/home", "/zone/home/scratch"} {
		kind, err := c.Stat(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, KindCollection, kind, p)
	}
}

func TestMakeCollection_RelativePath(t *testing.T) {
	c := createTestCatalog(t)
	err := c.MakeCollection(context.Background(), "zone/home", true)
	assert.True(t, IsCode(err, CodeInvalidInput), "got %v", err)
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)

	obj, err := c.Object(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "obj", obj.Name)
	assert.Equal(t, "rods", obj.Owner)
	require.Len(t, obj.Replicas, 1)
	assert.Equal(t, Replica{Number: 0, Hierarchy: "a", Status: 1, Size: 42, Modified: fixedTime}, obj.Replicas[0])

	kind, err := c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, KindObject, kind)
}

func TestPut_ExistingNeedsForce(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.Replicate(ctx, p, "b", ""))

	err := c.Put(ctx, p, "a", "rods", 42, false)
	assert.True(t, IsCode(err, CodeOverwrite), "got %v", err)

	require.NoError(t, c.Put(ctx, p, "b", "rods", 7, true))
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, statuses(t, c, p))
}

func TestPut_MissingCollection(t *testing.T) {
	c := createTestCatalog(t)
	err := c.Put(context.Background(), "/nowhere/obj", "a", "rods", 1, false)
	assert.True(t, IsCode(err, CodeUnknownCollection), "got %v", err)
}

func TestReplicate(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)

	require.NoError(t, c.Replicate(ctx, p, "b", "a"))
	obj, err := c.Object(ctx, p)
	require.NoError(t, err)
	require.Len(t, obj.Replicas, 2)
	assert.Equal(t, 1, obj.Replicas[1].Number)
	assert.Equal(t, "b", obj.Replicas[1].Hierarchy)
	assert.Equal(t, int64(42), obj.Replicas[1].Size)

	// A good destination is left as is.
	require.NoError(t, c.Replicate(ctx, p, "b", "a"))
	assert.Len(t, statuses(t, c, p), 2)
}

func TestReplicate_RefreshesStaleDestination(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.Replicate(ctx, p, "b", ""))
	require.NoError(t, c.SetStatus(ctx, p, "b", 0))

	require.NoError(t, c.Replicate(ctx, p, "b", ""))
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, statuses(t, c, p))
}

func TestReplicate_NoGoodSource(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.SetStatus(ctx, p, "a", 0))

	err := c.Replicate(ctx, p, "b", "")
	assert.True(t, IsCode(err, CodeNoGoodReplica), "got %v", err)

	require.NoError(t, c.SetStatus(ctx, p, "a", 1))
	err = c.Replicate(ctx, p, "b", "c")
	assert.True(t, IsCode(err, CodeNoGoodReplica), "named source without a replica: %v", err)
	assert.Equal(t, map[string]int{"a": 1}, statuses(t, c, p))
}

func TestMove(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.SetStatus(ctx, p, "a", 0))

	require.NoError(t, c.Move(ctx, p, "a", "b"))
	assert.Equal(t, map[string]int{"b": 0}, statuses(t, c, p))

	err := c.Move(ctx, p, "a", "c")
	assert.True(t, IsCode(err, CodeReplicaMissing), "got %v", err)

	err = c.Replicate(ctx, p, "c", "")
	assert.True(t, IsCode(err, CodeNoGoodReplica), "stale-only object: %v", err)
}

func TestMove_DestinationOccupied(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.Replicate(ctx, p, "b", ""))

	err := c.Move(ctx, p, "a", "b")
	assert.True(t, IsCode(err, CodeCopyInResource), "got %v", err)
}

func TestTrim(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.Replicate(ctx, p, "b", ""))

	n, err := c.Trim(ctx, p, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "would leave fewer than keep")

	n, err = c.Trim(ctx, p, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]int{"b": 1}, statuses(t, c, p))

	n, err = c.Trim(ctx, p, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "last replica is never trimmed")
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)

	for _, code := range []int{0, 2, 3, 4, 1} {
		require.NoError(t, c.SetStatus(ctx, p, "a", code))
		assert.Equal(t, map[string]int{"a": code}, statuses(t, c, p))
	}

	err := c.SetStatus(ctx, p, "a", 5)
	assert.True(t, IsCode(err, CodeInvalidInput), "got %v", err)

	err = c.SetStatus(ctx, p, "b", 0)
	assert.True(t, IsCode(err, CodeReplicaMissing), "got %v", err)

	err = c.SetStatus(ctx, "/zone/home/none", "a", 0)
	assert.True(t, IsCode(err, CodeNoRows), "got %v", err)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)
	require.NoError(t, c.MakeCollection(ctx, "/zone/home/sub", false))
	require.NoError(t, c.Put(ctx, "/zone/home/aaa", "b", "rods", 1, false))

	listing, err := c.List(ctx, "/zone/home")
	require.NoError(t, err)
	assert.Equal(t, "/zone/home", listing.Path)
	assert.Equal(t, []string{"/zone/home/sub"}, listing.Collections)
	require.Len(t, listing.Objects, 2)
	assert.Equal(t, "aaa", listing.Objects[0].Name)
	assert.Equal(t, p, listing.Objects[1].Path)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	p := seedObject(t, c)

	err := c.Remove(ctx, "/zone/home", false)
	assert.True(t, IsCode(err, CodeCollectionNotEmpty), "got %v", err)

	require.NoError(t, c.Remove(ctx, "/zone", true))
	for _, gone := range []string{"/zone", "/zone/home", p} {
		kind, err := c.Stat(ctx, gone)
		require.NoError(t, err)
		assert.Equal(t, KindNone, kind, gone)
	}

	var replicas int
	require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM replicas").Scan(&replicas))
	assert.Zero(t, replicas, "replicas cascade with their collection")

	err = c.Remove(ctx, p, false)
	assert.True(t, IsCode(err, CodeNoRows), "got %v", err)
}

func TestRemove_LeavesSiblingPrefix(t *testing.T) {
	ctx := context.Background()
	c := createTestCatalog(t)
	require.NoError(t, c.MakeCollection(ctx, "/zone/a", true))
	require.NoError(t, c.MakeCollection(ctx, "/zone/ab", true))

	require.NoError(t, c.Remove(ctx, "/zone/a", true))
	kind, err := c.Stat(ctx, "/zone/ab")
	require.NoError(t, err)
	assert.Equal(t, KindCollection, kind)
}

func TestError_Message(t *testing.T) {
	err := newError(CodeNoGoodReplica, "/zone/obj", "no good replica to replicate from")
	assert.Equal(t, "SYS_NO_GOOD_REPLICA: no good replica to replicate from [/zone/obj]", err.Error())
	assert.True(t, IsCode(err, CodeNoGoodReplica))
	assert.False(t, IsCode(err, CodeNoRows))
}
