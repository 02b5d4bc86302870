package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnishMulay/sandblock/internal/log_service/memory"
	ms "github.com/AnishMulay/sandblock/internal/metadata_service"
	"github.com/AnishMulay/sandblock/internal/metadata_service/memstore"
)

var (
	alice = ms.UserInfo{Owner: "alice", Password: "pw"}
	bob   = ms.UserInfo{Owner: "bob", Password: "pw"}
	root  = ms.UserInfo{Owner: "root", Password: "rootpw"}
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestNamespace(t *testing.T) (*Namespace, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	n := NewNamespace(memstore.NewMemStore(), Options{
		RootUser:     "root",
		RootPassword: "rootpw",
		ChunkSize:    8192,
		LeaseTime:    time.Second,
	}, memory.NewMemoryLogService())
	n.now = clock.now
	require.NoError(t, n.Start(context.Background()))
	return n, clock
}

func TestNamespace_CreateFile(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Namespace)
		path    string
		user    ms.UserInfo
		size    uint64
		wantErr error
	}{
		{name: "create in root", path: "/a", user: alice, size: 4096},
		{name: "relative path", path: "a", user: alice, size: 4096, wantErr: ms.ErrInvalidParam},
		{name: "zero size", path: "/a", user: alice, size: 0, wantErr: ms.ErrInvalidParam},
		{name: "unaligned size", path: "/a", user: alice, size: 4097, wantErr: ms.ErrInvalidParam},
		{name: "missing parent", path: "/nodir/a", user: alice, size: 4096, wantErr: ms.ErrFileNotFound},
		{
			name:    "duplicate",
			setup:   func(n *Namespace) { _ = n.CreateFile(context.Background(), "/a", alice, 4096) },
			path:    "/a",
			user:    alice,
			size:    4096,
			wantErr: ms.ErrFileExists,
		},
		{
			name:    "parent owned by someone else",
			setup:   func(n *Namespace) { _ = n.Mkdir(context.Background(), "/alice", alice) },
			path:    "/alice/f",
			user:    bob,
			size:    4096,
			wantErr: ms.ErrAuthFailed,
		},
		{
			name:  "root may create anywhere",
			setup: func(n *Namespace) { _ = n.Mkdir(context.Background(), "/alice", alice) },
			path:  "/alice/f",
			user:  root,
			size:  4096,
		},
		{
			name:    "root with wrong password",
			path:    "/f",
			user:    ms.UserInfo{Owner: "root", Password: "nope"},
			size:    4096,
			wantErr: ms.ErrAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := newTestNamespace(t)
			if tt.setup != nil {
				tt.setup(n)
			}
			err := n.CreateFile(context.Background(), tt.path, tt.user, tt.size)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNamespace_StatAndList(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, n.Mkdir(ctx, "/vol", alice))
	require.NoError(t, n.CreateFile(ctx, "/vol/b", alice, 8192))
	require.NoError(t, n.CreateFile(ctx, "/vol/a", alice, 4096))

	dir, err := n.GetFileInfo(ctx, "/vol", alice)
	require.NoError(t, err)

	fi, err := n.GetFileInfo(ctx, "/vol/b", alice)
	require.NoError(t, err)
	assert.Equal(t, ms.TypePageFile, fi.Type)
	assert.Equal(t, uint64(8192), fi.Length)
	assert.Equal(t, dir.ID, fi.ParentID)
	assert.Equal(t, uint64(8192), fi.ChunkSize)
	assert.Equal(t, "alice", fi.Owner)

	_, err = n.GetFileInfo(ctx, "/vol/b", bob)
	assert.ErrorIs(t, err, ms.ErrAuthFailed)

	entries, err := n.ListDir(ctx, "/vol", alice)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)

	_, err = n.ListDir(ctx, "/vol/a", alice)
	assert.ErrorIs(t, err, ms.ErrNotDirectory)

	rootEntries, err := n.ListDir(ctx, "/", bob)
	require.NoError(t, err)
	assert.Len(t, rootEntries, 1)
}

func TestNamespace_RmdirRequiresEmpty(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()

	require.NoError(t, n.Mkdir(ctx, "/d", alice))
	require.NoError(t, n.CreateFile(ctx, "/d/f", alice, 4096))

	assert.ErrorIs(t, n.Rmdir(ctx, "/d", alice), ms.ErrDirNotEmpty)
	require.NoError(t, n.DeleteFile(ctx, "/d/f", alice, false))
	require.NoError(t, n.Rmdir(ctx, "/d", alice))
	assert.ErrorIs(t, n.Rmdir(ctx, "/d", alice), ms.ErrFileNotFound)
	assert.ErrorIs(t, n.Rmdir(ctx, "/", root), ms.ErrInvalidParam)
}

func TestNamespace_Extend(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.CreateFile(ctx, "/f", alice, 8192))

	assert.ErrorIs(t, n.Extend(ctx, "/f", alice, 4096), ms.ErrNoShrink)
	assert.ErrorIs(t, n.Extend(ctx, "/f", alice, 10000), ms.ErrInvalidParam)
	assert.ErrorIs(t, n.Extend(ctx, "/f", bob, 16384), ms.ErrAuthFailed)
	require.NoError(t, n.Extend(ctx, "/f", alice, 16384))

	fi, err := n.GetFileInfo(ctx, "/f", alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(16384), fi.Length)
}

func TestNamespace_Rename(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.Mkdir(ctx, "/d", alice))
	require.NoError(t, n.CreateFile(ctx, "/d/f", alice, 4096))
	require.NoError(t, n.CreateFile(ctx, "/d/g", alice, 4096))

	assert.ErrorIs(t, n.RenameFile(ctx, alice, "/d", "/e"), ms.ErrNotSupported)
	assert.ErrorIs(t, n.RenameFile(ctx, alice, "/d/f", "/d/g"), ms.ErrFileExists)
	require.NoError(t, n.RenameFile(ctx, alice, "/d/f", "/d/h"))

	_, err := n.GetFileInfo(ctx, "/d/f", alice)
	assert.ErrorIs(t, err, ms.ErrFileNotFound)
	fi, err := n.GetFileInfo(ctx, "/d/h", alice)
	require.NoError(t, err)
	assert.Equal(t, "h", fi.Name)
}

func TestNamespace_ChangeOwnerRequiresRoot(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.CreateFile(ctx, "/f", alice, 4096))

	assert.ErrorIs(t, n.ChangeOwner(ctx, "/f", "bob", alice), ms.ErrAuthFailed)
	require.NoError(t, n.ChangeOwner(ctx, "/f", "bob", root))

	fi, err := n.GetFileInfo(ctx, "/f", bob)
	require.NoError(t, err)
	assert.Equal(t, "bob", fi.Owner)
}

func TestNamespace_SessionLifecycle(t *testing.T) {
	n, clock := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.CreateFile(ctx, "/f", alice, 4096))

	_, s1, err := n.OpenFile(ctx, "/f", alice, "client-1")
	require.NoError(t, err)
	assert.Equal(t, time.Second, s1.LeaseTime)

	_, _, err = n.OpenFile(ctx, "/f", alice, "client-2")
	assert.ErrorIs(t, err, ms.ErrFileOccupied)

	assert.ErrorIs(t, n.DeleteFile(ctx, "/f", alice, false), ms.ErrFileOccupied)
	assert.ErrorIs(t, n.RenameFile(ctx, alice, "/f", "/g"), ms.ErrFileOccupied)

	clock.advance(800 * time.Millisecond)
	_, _, err = n.RefreshSession(ctx, "/f", s1.SessionID, alice)
	require.NoError(t, err)
	clock.advance(800 * time.Millisecond)
	_, _, err = n.OpenFile(ctx, "/f", alice, "client-2")
	assert.ErrorIs(t, err, ms.ErrFileOccupied, "refresh extends the lease")

	require.NoError(t, n.CloseFile(ctx, "/f", s1.SessionID, alice))
	assert.ErrorIs(t, n.CloseFile(ctx, "/f", s1.SessionID, alice), ms.ErrSessionNotFound)

	_, _, err = n.RefreshSession(ctx, "/f", "unknown", alice)
	assert.ErrorIs(t, err, ms.ErrSessionNotFound)
}

func TestNamespace_ExpiredSessionIsReplaced(t *testing.T) {
	n, clock := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.CreateFile(ctx, "/f", alice, 4096))

	_, _, err := n.OpenFile(ctx, "/f", alice, "client-1")
	require.NoError(t, err)

	clock.advance(2 * time.Second)
	_, s2, err := n.OpenFile(ctx, "/f", alice, "client-2")
	require.NoError(t, err)
	assert.Equal(t, "client-2", s2.ClientID)
	assert.Equal(t, 1, n.OpenSessions())
}

func TestNamespace_ForceDeleteRunsHook(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.CreateFile(ctx, "/f", alice, 4096))
	_, _, err := n.OpenFile(ctx, "/f", alice, "client-1")
	require.NoError(t, err)

	var deleted []ms.FileInfo
	n.OnDelete(func(_ context.Context, fi ms.FileInfo) { deleted = append(deleted, fi) })

	require.NoError(t, n.DeleteFile(ctx, "/f", alice, true))
	require.Len(t, deleted, 1)
	assert.Equal(t, "/f", deleted[0].FullPath)
	assert.Equal(t, 0, n.OpenSessions())
}

func TestNamespace_DeleteDirectoryNotSupported(t *testing.T) {
	n, _ := newTestNamespace(t)
	ctx := context.Background()
	require.NoError(t, n.Mkdir(ctx, "/d", alice))

	assert.ErrorIs(t, n.DeleteFile(ctx, "/d", alice, false), ms.ErrNotSupported)
}
