// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vffs/vffs/clock"
	"github.com/vffs/vffs/fs/inode"
)

func newTestFS(t *testing.T, maxMemory, maxFileSize uint64) *fileSystem {
	t.Helper()

	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	root := inode.NewRoot(1, 1, toTimestamp(clk.Now()))

	vfs := &fileSystem{
		clock:       clk,
		maxMemory:   maxMemory,
		maxFileSize: maxFileSize,
		uid:         1,
		gid:         1,
		store:       inode.NewStore(root),
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		nextHandle:  1,
	}
	vfs.mu = syncutil.NewInvariantMutex(vfs.checkInvariants)
	return vfs
}

func mkdir(t *testing.T, vfs *fileSystem, parent inode.ID, name string) inode.ID {
	t.Helper()
	op := &fuseops.MkDirOp{Parent: parent, Name: name, Mode: 0755}
	require.NoError(t, vfs.MkDir(context.Background(), op))
	return op.Entry.Child
}

func createFile(t *testing.T, vfs *fileSystem, parent inode.ID, name string) inode.ID {
	t.Helper()
	op := &fuseops.CreateFileOp{Parent: parent, Name: name, Mode: 0644}
	require.NoError(t, vfs.CreateFile(context.Background(), op))
	return op.Entry.Child
}

func lookup(vfs *fileSystem, parent inode.ID, name string) (inode.ID, error) {
	op := &fuseops.LookUpInodeOp{Parent: parent, Name: name}
	err := vfs.LookUpInode(context.Background(), op)
	return op.Entry.Child, err
}

func write(vfs *fileSystem, id inode.ID, data []byte) (int, error) {
	op := &fuseops.WriteFileOp{Inode: id, Data: data}
	err := vfs.WriteFile(context.Background(), op)
	return len(op.Data), err
}

func read(vfs *fileSystem, id inode.ID, offset int64, size int) ([]byte, error) {
	op := &fuseops.ReadFileOp{Inode: id, Offset: offset, Dst: make([]byte, size)}
	err := vfs.ReadFile(context.Background(), op)
	if err != nil {
		return nil, err
	}
	return op.Dst[:op.BytesRead], nil
}

// Scenario 1: a write that would exceed max_file_size fails with EFBIG and
// leaves the file's prior content untouched.
func TestScenario_WriteExceedingMaxFileSize(t *testing.T) {
	const oneMB = 1 << 20
	vfs := newTestFS(t, oneMB, oneMB)

	dirID := mkdir(t, vfs, inode.Root, "d")
	fileID := createFile(t, vfs, dirID, "f")

	chunk := make([]byte, 600*1024)
	for i := range chunk {
		chunk[i] = byte(i)
	}

	n, err := write(vfs, fileID, chunk)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), n)

	_, err = write(vfs, fileID, chunk)
	assert.ErrorIs(t, err, errFileTooBig)

	got, err := read(vfs, fileID, 0, len(chunk)+1)
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

// Scenario 2: creating the same directory twice fails with EEXIST.
func TestScenario_DuplicateMkdir(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	mkdir(t, vfs, inode.Root, "a")

	op := &fuseops.MkDirOp{Parent: inode.Root, Name: "a", Mode: 0755}
	err := vfs.MkDir(context.Background(), op)
	assert.ErrorIs(t, err, errExists)
}

// Scenario 3: rmdir on a non-empty directory fails with ENOTEMPTY; once
// emptied, both rmdir calls succeed.
func TestScenario_RmdirNonEmptyThenEmpty(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	aID := mkdir(t, vfs, inode.Root, "a")
	mkdir(t, vfs, aID, "b")

	err := vfs.RmDir(context.Background(), &fuseops.RmDirOp{Parent: inode.Root, Name: "a"})
	assert.ErrorIs(t, err, errNotEmpty)

	require.NoError(t, vfs.RmDir(context.Background(), &fuseops.RmDirOp{Parent: aID, Name: "b"}))
	require.NoError(t, vfs.RmDir(context.Background(), &fuseops.RmDirOp{Parent: inode.Root, Name: "a"}))

	_, err = lookup(vfs, inode.Root, "a")
	assert.ErrorIs(t, err, errNotFound)
}

// Scenario 4: renaming /x to /y makes /y resolve and /x disappear.
func TestScenario_RenameToFreshName(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	xID := createFile(t, vfs, inode.Root, "x")

	err := vfs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.Root, OldName: "x",
		NewParent: inode.Root, NewName: "y",
	})
	require.NoError(t, err)

	gotID, err := lookup(vfs, inode.Root, "y")
	require.NoError(t, err)
	assert.Equal(t, xID, gotID)

	_, err = lookup(vfs, inode.Root, "x")
	assert.ErrorIs(t, err, errNotFound)
}

// Scenario 5: renaming /x onto an existing /y replaces /y; the replaced
// inode is gone from the store and accounting still balances.
func TestScenario_RenameReplacingExistingTarget(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	xID := createFile(t, vfs, inode.Root, "x")
	yID := createFile(t, vfs, inode.Root, "y")

	_, err := write(vfs, xID, []byte("new"))
	require.NoError(t, err)
	_, err = write(vfs, yID, []byte("stale-content"))
	require.NoError(t, err)

	err = vfs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.Root, OldName: "x",
		NewParent: inode.Root, NewName: "y",
	})
	require.NoError(t, err)

	gotID, err := lookup(vfs, inode.Root, "y")
	require.NoError(t, err)
	assert.Equal(t, xID, gotID)

	_, ok := vfs.store.Get(yID)
	assert.False(t, ok, "replaced target inode must be gone from the store")

	assert.EqualValues(t, vfs.store.TotalSize(), uint64(len("new")))
}

// Scenario 6: a 300-byte name is rejected with ENAMETOOLONG and the store
// is left unchanged.
func TestScenario_NameTooLong(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	longName := make([]byte, 300)
	for i := range longName {
		longName[i] = 'a'
	}

	before := vfs.store.Count()
	op := &fuseops.CreateFileOp{Parent: inode.Root, Name: string(longName), Mode: 0644}
	err := vfs.CreateFile(context.Background(), op)
	assert.ErrorIs(t, err, errNameTooLong)
	assert.Equal(t, before, vfs.store.Count())
}

// Round-trip: create then lookup resolves to the same id.
func TestRoundTrip_CreateThenLookup(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	id := createFile(t, vfs, inode.Root, "x")
	got, err := lookup(vfs, inode.Root, "x")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

// Round-trip: two successive writes concatenate (append-only semantics).
func TestRoundTrip_SuccessiveWritesAppend(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	id := createFile(t, vfs, inode.Root, "x")
	_, err := write(vfs, id, []byte("hello, "))
	require.NoError(t, err)
	_, err = write(vfs, id, []byte("world"))
	require.NoError(t, err)

	got, err := read(vfs, id, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(got))
}

// Round-trip: setattr(mode) is reflected by a subsequent getattr.
func TestRoundTrip_SetattrThenGetattr(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	id := createFile(t, vfs, inode.Root, "x")

	newMode := os.FileMode(0600)
	setOp := &fuseops.SetInodeAttributesOp{Inode: id, Mode: &newMode}
	require.NoError(t, vfs.SetInodeAttributes(context.Background(), setOp))

	getOp := &fuseops.GetInodeAttributesOp{Inode: id}
	require.NoError(t, vfs.GetInodeAttributes(context.Background(), getOp))
	assert.Equal(t, newMode, getOp.Attributes.Mode)
}

// Round-trip: renaming an entry onto itself succeeds as a no-op.
func TestRoundTrip_RenameOntoSelfIsNoOp(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	mkdir(t, vfs, inode.Root, "p")
	createFile(t, vfs, inode.Root, "a")

	err := vfs.Rename(context.Background(), &fuseops.RenameOp{
		OldParent: inode.Root, OldName: "a",
		NewParent: inode.Root, NewName: "a",
	})
	assert.NoError(t, err)

	_, err = lookup(vfs, inode.Root, "a")
	assert.NoError(t, err)
}

func TestReaddir_ListsChildrenWithMonotonicOffsets(t *testing.T) {
	vfs := newTestFS(t, 1<<20, 1<<20)

	aID := mkdir(t, vfs, inode.Root, "a")
	bID := mkdir(t, vfs, inode.Root, "b")
	cID := createFile(t, vfs, inode.Root, "c")

	openOp := &fuseops.OpenDirOp{Inode: inode.Root}
	require.NoError(t, vfs.OpenDir(context.Background(), openOp))

	buf := make([]byte, 4096)
	readOp := &fuseops.ReadDirOp{Handle: openOp.Handle, Dst: buf, Offset: 0}
	require.NoError(t, vfs.ReadDir(context.Background(), readOp))
	assert.Greater(t, readOp.BytesRead, 0)

	// Entries carry 1-based cursors 1, 2, 3 in insertion order.
	dirents := []fuseutil.Dirent{
		{Offset: 1, Inode: aID, Name: "a", Type: fuseutil.DT_Directory},
		{Offset: 2, Inode: bID, Name: "b", Type: fuseutil.DT_Directory},
		{Offset: 3, Inode: cID, Name: "c", Type: fuseutil.DT_File},
	}
	want := make([]byte, 4096)
	n := 0
	for _, d := range dirents {
		n += fuseutil.WriteDirent(want[n:], d)
	}
	assert.Equal(t, want[:n], buf[:readOp.BytesRead])

	// Resuming at cursor 2 yields only the entry after it.
	resumeBuf := make([]byte, 4096)
	resumeOp := &fuseops.ReadDirOp{Handle: openOp.Handle, Dst: resumeBuf, Offset: 2}
	require.NoError(t, vfs.ReadDir(context.Background(), resumeOp))
	wantTail := make([]byte, 4096)
	m := fuseutil.WriteDirent(wantTail, dirents[2])
	assert.Equal(t, wantTail[:m], resumeBuf[:resumeOp.BytesRead])
}

