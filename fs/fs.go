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

// Package fs wires VFFS's in-memory inode graph (package inode) up to the
// jacobsa/fuse kernel bridge. Every exported handler here is a short state
// machine of the form look up preconditions, validate, mutate the store,
// reply, matching §4.5 of the filesystem's handler contracts.
package fs

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"

	"github.com/vffs/vffs/clock"
	"github.com/vffs/vffs/fs/inode"
	"github.com/vffs/vffs/internal/metrics"
)

// ServerConfig bundles the knobs the CLI layer (external, §6) supplies when
// standing up a VFFS server: the two capacity limits and the ownership the
// root and every new inode inherit.
type ServerConfig struct {
	// MaxMemory is the total_size ceiling, in bytes, enforced across every
	// file's content.
	MaxMemory uint64

	// MaxFileSize is the per-file content length ceiling, in bytes.
	MaxFileSize uint64

	// Clock supplies Now() for every timestamp a handler stamps. Defaults to
	// clock.RealClock{} if nil.
	Clock clock.Clock

	// Uid and Gid own the root inode and every inode subsequently created.
	Uid uint32
	Gid uint32

	// Metrics, if non-nil, receives capacity and inode-count gauge updates
	// after every mutating handler. Optional.
	Metrics *metrics.Recorder
}

// NewServer builds a fuse.Server backed by a fresh, empty VFFS inode graph,
// ready to be passed to fuse.Mount.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	now := toTimestamp(clk.Now())
	root := inode.NewRoot(cfg.Uid, cfg.Gid, now)

	vfs := &fileSystem{
		clock:       clk,
		maxMemory:   cfg.MaxMemory,
		maxFileSize: cfg.MaxFileSize,
		uid:         cfg.Uid,
		gid:         cfg.Gid,
		metrics:     cfg.Metrics,
		store:       inode.NewStore(root),
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		nextHandle:  1,
	}
	vfs.mu = syncutil.NewInvariantMutex(vfs.checkInvariants)

	return fuseutil.NewFileSystemServer(vfs), nil
}

////////////////////////////////////////////////////////////////////////
// fileSystem type
////////////////////////////////////////////////////////////////////////

// LOCK ORDERING
//
// VFFS's handlers run to completion before the dispatcher starts the next
// one (§5: single-threaded cooperative scheduling). The jacobsa/fuse bridge
// may still dispatch from more than one goroutine when parallel directory
// operations are enabled, so fileSystem carries one coarse lock (mu) guarding
// the whole inode graph rather than per-inode locks: there is only one
// resource to protect (the Store) and no long-running I/O happens while
// holding it, so a single lock cannot become a bottleneck or deadlock
// hazard the way gcsfuse's inode-then-filesystem hierarchy can.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	clock       clock.Clock
	maxMemory   uint64
	maxFileSize uint64
	uid, gid    uint32
	metrics     *metrics.Recorder

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	store *inode.Store

	// GUARDED_BY(mu)
	dirHandles map[fuseops.HandleID]*dirHandle

	// GUARDED_BY(mu)
	nextHandle fuseops.HandleID
}

func (fs *fileSystem) checkInvariants() {
	root, ok := fs.store.Get(inode.Root)
	if !ok || !root.IsDir() {
		panic("invariant violated: root missing or not a directory")
	}

	var sum uint64
	fs.store.Walk(func(id inode.ID) {
		in, _ := fs.store.Get(id)
		sum += in.Size
		if in.IsDir() {
			seen := make(map[string]bool)
			for _, e := range in.Children() {
				if seen[e.Name] {
					panic("invariant violated: duplicate child name " + e.Name)
				}
				seen[e.Name] = true

				child, ok := fs.store.Get(e.ChildID)
				if !ok {
					panic(fmt.Sprintf("invariant violated: dangling child id %d", e.ChildID))
				}
				if child.IsDir() != (e.Kind == inode.KindDirectory) {
					panic("invariant violated: child kind mismatch")
				}
			}
		} else if in.Size > fs.maxFileSize {
			panic("invariant violated: file exceeds max size")
		}
	})
	if sum != fs.store.TotalSize() {
		panic("invariant violated: total_size accounting mismatch")
	}
	if fs.store.TotalSize() > fs.maxMemory {
		panic("invariant violated: total_size exceeds max_memory")
	}
}

func toTimestamp(t time.Time) inode.Timestamp {
	return inode.Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

func fromTimestamp(ts inode.Timestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}

// epochTime is the fixed, untracked creation time VFFS reports for every
// inode, per §6's attribute record ("creation time = epoch").
var epochTime = time.Unix(0, 0)

// touch stamps atime/mtime/ctime on in according to which, using the
// filesystem's clock. It implements invariant (7): timestamps are
// monotonic with respect to the handler that last touched them.
func (fs *fileSystem) touch(in *inode.Inode, atime, mtime, ctime bool) {
	now := toTimestamp(fs.clock.Now())
	if atime {
		in.Atime = now
	}
	if mtime {
		in.Mtime = now
	}
	if ctime {
		in.Ctime = now
	}
}

func (fs *fileSystem) attributesFor(in *inode.Inode) fuseops.InodeAttributes {
	nlink := in.Hardlinks
	if nlink == 0 {
		nlink = 1
	}
	return fuseops.InodeAttributes{
		Size:   in.Size,
		Nlink:  nlink,
		Mode:   in.Mode,
		Atime:  fromTimestamp(in.Atime),
		Mtime:  fromTimestamp(in.Mtime),
		Ctime:  fromTimestamp(in.Ctime),
		Crtime: epochTime,
		Uid:    in.Uid,
		Gid:    in.Gid,
	}
}

func (fs *fileSystem) recordMetrics() {
	if fs.metrics == nil {
		return
	}
	fs.metrics.SetTotalSize(fs.store.TotalSize())
	fs.metrics.SetInodeCount(fs.store.Count())
}

// getDir resolves id to a Directory inode, returning ENOENT / ENOTDIR as
// appropriate for the lookup/mutation handlers that require one.
func (fs *fileSystem) getDir(id inode.ID) (*inode.Inode, error) {
	in, ok := fs.store.Get(id)
	if !ok {
		return nil, errNotFound
	}
	if !in.IsDir() {
		return nil, errNotDir
	}
	return in, nil
}

////////////////////////////////////////////////////////////////////////
// Handlers
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) Destroy() {}

func (fs *fileSystem) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.getDir(op.Parent)
	if err != nil {
		return err
	}

	entry, ok := parent.FindByName(op.Name)
	if !ok {
		return errNotFound
	}

	child, ok := fs.store.Get(entry.ChildID)
	if !ok {
		return errIO
	}

	op.Entry.Child = child.ID
	op.Entry.Attributes = fs.attributesFor(child)
	return nil
}

func (fs *fileSystem) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.store.Get(op.Inode)
	if !ok {
		return errNotFound
	}

	op.Attributes = fs.attributesFor(in)
	return nil
}

// SetInodeAttributes applies each provided field of op, per §4.5's setattr
// contract. Unsupported fields (there are none left unsupported here, but
// future bridge-added fields) are silently ignored rather than rejected.
func (fs *fileSystem) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.store.Get(op.Inode)
	if !ok {
		return errNotFound
	}

	if op.Mode != nil {
		in.Mode = *op.Mode
	}
	if op.Size != nil {
		if in.IsDir() {
			return errIsDir
		}
		newSize := *op.Size
		if newSize > fs.maxFileSize {
			return errFileTooBig
		}
		if fs.store.TotalSize()-in.Size+newSize > fs.maxMemory {
			return errNoMemory
		}
		content := in.Contents()
		switch {
		case newSize < uint64(len(content)):
			content = content[:newSize]
		case newSize > uint64(len(content)):
			grown := make([]byte, newSize)
			copy(grown, content)
			content = grown
		}
		fs.store.AdjustSize(in, newSize)
		in.SetContents(content)
	}
	if op.Atime != nil {
		in.Atime = toTimestamp(*op.Atime)
	}

	fs.touch(in, false, true, true)

	op.Attributes = fs.attributesFor(in)
	fs.recordMetrics()
	return nil
}

// ForgetInode is a no-op: VFFS ties inode lifetime directly to unlink/rmdir
// rather than to kernel lookup-count bookkeeping (see DESIGN.md), so there
// is nothing to release here. The method exists only to satisfy callers
// that still invoke it as part of the kernel bridge's inode cache protocol.
func (fs *fileSystem) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *fileSystem) MkDir(
	ctx context.Context,
	op *fuseops.MkDirOp) error {
	if err := validateName(op.Name); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.getDir(op.Parent)
	if err != nil {
		return err
	}

	if _, exists := parent.FindByName(op.Name); exists {
		return errExists
	}

	id := fs.store.AllocateID()
	now := toTimestamp(fs.clock.Now())
	child := inode.NewDirectory(id, op.Name, op.Mode, fs.uid, fs.gid, now)
	fs.store.Insert(child)
	parent.AppendChild(inode.Entry{ChildID: id, Name: op.Name, Kind: inode.KindDirectory})
	fs.touch(parent, false, true, true)

	op.Entry.Child = id
	op.Entry.Attributes = fs.attributesFor(child)
	fs.recordMetrics()
	return nil
}

// CreateFile implements §4.5's create. It deliberately does not reject an
// already-existing name in the parent -- that asymmetry with MkDir is
// observed, intentional behavior the specification preserves; see
// DESIGN.md's discussion of the open question in spec §9.
func (fs *fileSystem) CreateFile(
	ctx context.Context,
	op *fuseops.CreateFileOp) error {
	if err := validateName(op.Name); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.getDir(op.Parent)
	if err != nil {
		return err
	}

	id := fs.store.AllocateID()
	now := toTimestamp(fs.clock.Now())
	child := inode.NewFile(id, op.Name, op.Mode, fs.uid, fs.gid, now)
	fs.store.Insert(child)
	parent.AppendChild(inode.Entry{ChildID: id, Name: op.Name, Kind: inode.KindFile})
	fs.touch(parent, false, true, true)

	op.Entry.Child = id
	op.Entry.Attributes = fs.attributesFor(child)
	op.Handle = fuseops.HandleID(id)
	fs.recordMetrics()
	return nil
}

func (fs *fileSystem) RmDir(
	ctx context.Context,
	op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.getDir(op.Parent)
	if err != nil {
		return err
	}

	entry, ok := parent.FindByName(op.Name)
	if !ok {
		return errNotFound
	}

	target, ok := fs.store.Get(entry.ChildID)
	if !ok {
		return errIO
	}
	if !target.IsDir() {
		return errNotDir
	}
	if !target.Empty() {
		return errNotEmpty
	}

	parent.RemoveChildByName(op.Name)
	fs.store.Remove(target.ID)
	fs.touch(parent, false, true, true)
	fs.recordMetrics()
	return nil
}

// Unlink implements §4.5's unlink. It does not check that the target is a
// File: applied to an empty (or non-empty) Directory it still removes the
// directory's entry and inode, without rmdir's emptiness check. This
// mirrors the specification's described behavior rather than "fixing" it;
// see DESIGN.md.
func (fs *fileSystem) Unlink(
	ctx context.Context,
	op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.getDir(op.Parent)
	if err != nil {
		return err
	}

	entry, ok := parent.FindByName(op.Name)
	if !ok {
		return errNotFound
	}

	parent.RemoveChildByName(op.Name)
	fs.store.Remove(entry.ChildID)
	fs.touch(parent, false, true, true)
	fs.recordMetrics()
	return nil
}

// Rename implements §4.5's rename. The kernel bridge exposes this op even
// though the teacher's GCS-backed filesystem, with its flat object
// namespace, never implemented it; VFFS's tree-structured directories make
// rename meaningful, so this handler is authored fresh in the dispatch
// idiom the rest of this file uses, rather than adapted from an existing
// teacher method.
func (fs *fileSystem) Rename(
	ctx context.Context,
	op *fuseops.RenameOp) error {
	if err := validateName(op.NewName); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParent, err := fs.getDir(op.OldParent)
	if err != nil {
		return err
	}
	newParent, err := fs.getDir(op.NewParent)
	if err != nil {
		return err
	}

	srcEntry, ok := oldParent.FindByName(op.OldName)
	if !ok {
		return errNotFound
	}
	src, ok := fs.store.Get(srcEntry.ChildID)
	if !ok {
		return errIO
	}

	if tgtEntry, ok := newParent.FindByName(op.NewName); ok {
		if tgtEntry.ChildID == src.ID {
			// Renaming something onto itself: a no-op success.
			return nil
		}

		tgt, ok := fs.store.Get(tgtEntry.ChildID)
		if !ok {
			return errIO
		}
		if tgt.IsDir() && !tgt.Empty() {
			return errNotEmpty
		}

		newParent.RemoveChildByName(op.NewName)
		fs.store.Remove(tgt.ID)
	}

	oldParent.RemoveChildByName(op.OldName)
	newParent.AppendChild(inode.Entry{ChildID: src.ID, Name: op.NewName, Kind: srcEntry.Kind})

	src.Name = op.NewName
	fs.touch(src, false, false, true)
	fs.touch(oldParent, false, true, true)
	if newParent.ID != oldParent.ID {
		fs.touch(newParent, false, true, true)
	}

	fs.recordMetrics()
	return nil
}

// OpenDir implements §4.5's open for directories: it simply mints a handle
// that ReadDir below uses to find the directory; the cursor is not kept on
// the handle but arrives as op.Offset on every ReadDir call.
func (fs *fileSystem) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.getDir(op.Inode)
	if err != nil {
		return err
	}

	id := fs.nextHandle
	fs.nextHandle++
	fs.dirHandles[id] = newDirHandle(dir)
	op.Handle = id
	return nil
}

func (fs *fileSystem) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dh, ok := fs.dirHandles[op.Handle]
	if !ok {
		return errInvalid
	}

	n, err := dh.readInto(op.Dst, op.Offset)
	if err != nil {
		return err
	}
	op.BytesRead = n
	return nil
}

func (fs *fileSystem) ReleaseDirHandle(
	ctx context.Context,
	op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.dirHandles, op.Handle)
	return nil
}

// OpenFile implements §4.5's open for files. O_RDONLY|O_TRUNC is rejected
// with EACCES; every other access mode is accepted. No per-handle state is
// retained -- the handle id is simply the inode id, matching the contract
// that read/write address an inode directly.
func (fs *fileSystem) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.store.Get(op.Inode)
	if !ok {
		return errNotFound
	}
	if in.IsDir() {
		return errIsDir
	}

	if op.OpenFlags&syscall.O_TRUNC != 0 && op.OpenFlags&syscall.O_ACCMODE == syscall.O_RDONLY {
		return errAccessDenied
	}

	op.Handle = fuseops.HandleID(op.Inode)
	return nil
}

func (fs *fileSystem) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.store.Get(op.Inode)
	if !ok {
		return errNotFound
	}
	if in.IsDir() {
		return errIsDir
	}
	if op.Offset < 0 {
		return errInvalid
	}

	content := in.Contents()
	if op.Offset >= int64(len(content)) {
		op.BytesRead = 0
		return nil
	}

	n := copy(op.Dst, content[op.Offset:])
	op.BytesRead = n
	return nil
}

// WriteFile implements §4.5's write. Per the specification's observed
// (and preserved) semantics, writes always append and ignore op.Offset; see
// DESIGN.md for why a POSIX-faithful splice-at-offset was not substituted.
func (fs *fileSystem) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in, ok := fs.store.Get(op.Inode)
	if !ok {
		return errNotFound
	}
	if in.IsDir() {
		return errIsDir
	}

	newSize := uint64(len(in.Contents()) + len(op.Data))
	if newSize > fs.maxFileSize {
		return errFileTooBig
	}
	if fs.store.TotalSize()-in.Size+newSize > fs.maxMemory {
		return errNoMemory
	}

	merged := append(append([]byte{}, in.Contents()...), op.Data...)
	fs.store.AdjustSize(in, newSize)
	in.SetContents(merged)
	fs.touch(in, false, true, true)

	fs.recordMetrics()
	return nil
}

func (fs *fileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	// VFFS has no persistence layer (§1 non-goals); nothing to flush.
	return nil
}

func (fs *fileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return nil
}

func (fs *fileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return nil
}

