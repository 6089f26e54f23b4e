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

// Package inode implements the in-memory inode graph at the heart of VFFS:
// the node type itself, the id-keyed store that owns all inodes, and the
// ordered child lists that give directories their structure. Nothing in this
// package talks to the FUSE bridge; it is pure, synchronous, in-process state.
package inode

import (
	"os"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// ID is the unique, process-wide identifier of an inode. The root directory
// always has ID Root; all other ids are minted by a Store in increasing
// order starting at 2.
type ID = fuseops.InodeID

// Root is the fixed, reserved id of the filesystem root. It is never
// reused and the root it names is never removed.
const Root ID = fuseops.RootInodeID

// Kind distinguishes the two inode variants VFFS supports.
type Kind int

const (
	// KindFile marks an inode that owns a byte buffer.
	KindFile Kind = iota
	// KindDirectory marks an inode that owns an ordered list of children.
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// DirentType returns the fuseutil/readdir type tag corresponding to this
// Kind, for use when populating directory listings.
func (k Kind) DirentType() fuseutil.DirentType {
	if k == KindDirectory {
		return fuseutil.DT_Directory
	}
	return fuseutil.DT_File
}

// Entry is the triple a Directory inode stores for each of its children:
// the child's id, its name within this directory, and its kind. Entries are
// held in insertion order; readdir iterates that order directly.
type Entry struct {
	ChildID ID
	Name    string
	Kind    Kind
}

// Inode is a single node of the VFFS graph: either a File (owning content)
// or a Directory (owning children). The two variants share the attribute
// fields below; exactly one of the payload fields is meaningful, selected by
// Kind.
//
// An Inode never references another Inode by pointer. Directories hold only
// (id, name, kind) triples; the owning Store is the sole place an id is
// resolved back to an Inode. This is a deliberate departure from graphs that
// embed parent/child pointers directly: it avoids reference cycles and keeps
// ownership of every node in one place (the Store), matching §9 of the
// filesystem's design notes.
type Inode struct {
	ID ID

	// Kind selects which of the payload fields below is valid.
	Kind Kind

	// Name is this inode's own name as seen from its parent's child list.
	// Kept on the inode (in addition to the parent's Entry.Name) so that
	// rename only has to touch one place to relabel a moved inode; the two
	// must always agree.
	Name string

	// Size is the content length in bytes for a File; always zero for a
	// Directory. The Store's running total_size is the sum of this field
	// across every inode it holds.
	Size uint64

	// Mode holds the permission bits, plus os.ModeDir for a Directory; it is
	// stored but never consulted to gate access (VFFS does not enforce POSIX
	// permissions).
	Mode os.FileMode

	// Hardlinks is fixed at 1 for both files and empty directories; VFFS
	// exposes no operation that changes it.
	Hardlinks uint32

	Uid uint32
	Gid uint32

	// Atime, Mtime and Ctime are the three timestamps every inode carries.
	// Each handler that legitimately mutates an inode is responsible for
	// advancing the relevant ones; see fs.touch.
	Atime, Mtime, Ctime Timestamp

	// Xattrs maps extended-attribute names to values. The spec reserves this
	// field but defines no operation that mutates it after creation.
	Xattrs map[string][]byte

	// contents is the byte buffer backing a File inode. nil for directories.
	contents []byte

	// children is the ordered list of directory entries backing a Directory
	// inode. nil for files.
	children []Entry
}

// Timestamp is a (seconds, nanoseconds) pair, mirroring the wire
// representation the kernel bridge expects and keeping inode.go free of a
// direct time.Time dependency in its storage layout.
type Timestamp struct {
	Sec  int64
	Nsec int32
}

// NewFile constructs a fresh, empty File inode with the given identity and
// ownership. Callers (fs.fileSystem.CreateFile) are responsible for inserting it
// into a Store and linking it into a parent's children.
func NewFile(id ID, name string, mode os.FileMode, uid, gid uint32, ts Timestamp) *Inode {
	return &Inode{
		ID:        id,
		Kind:      KindFile,
		Name:      name,
		Mode:      mode &^ os.ModeType,
		Hardlinks: 1,
		Uid:       uid,
		Gid:       gid,
		Atime:     ts,
		Mtime:     ts,
		Ctime:     ts,
		Xattrs:    make(map[string][]byte),
	}
}

// NewDirectory constructs a fresh, empty Directory inode with the given
// identity and ownership.
func NewDirectory(id ID, name string, mode os.FileMode, uid, gid uint32, ts Timestamp) *Inode {
	return &Inode{
		ID:        id,
		Kind:      KindDirectory,
		Name:      name,
		Mode:      mode&^os.ModeType | os.ModeDir,
		Hardlinks: 1,
		Uid:       uid,
		Gid:       gid,
		Atime:     ts,
		Mtime:     ts,
		Ctime:     ts,
		Xattrs:    make(map[string][]byte),
		children:  []Entry{},
	}
}

// NewRoot constructs the distinguished root directory inode.
func NewRoot(uid, gid uint32, ts Timestamp) *Inode {
	return NewDirectory(Root, "", 0755, uid, gid, ts)
}

// IsDir reports whether this inode is a Directory.
func (in *Inode) IsDir() bool { return in.Kind == KindDirectory }

// Contents returns the File's content buffer. Callers must not retain it
// across a mutation; Read/Write on *fs.fileSystem copy in and out.
func (in *Inode) Contents() []byte { return in.contents }

// SetContents replaces the File's content buffer and updates Size to match.
// It does not check Kind and would give a Directory inode contents and a
// non-zero Size; callers are expected to have already checked Kind.
func (in *Inode) SetContents(b []byte) {
	in.contents = b
	in.Size = uint64(len(b))
}

// Children returns the Directory's ordered entry list. The returned slice
// must be treated as read-only by callers outside this package.
func (in *Inode) Children() []Entry { return in.children }

// FindByName performs a linear scan of this directory's children for the
// first entry with the given name, implementing §4.2's find_by_name. It
// returns the entry and true, or the zero Entry and false.
func (in *Inode) FindByName(name string) (Entry, bool) {
	for _, e := range in.children {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// AppendChild appends a new entry to the end of this directory's children,
// implementing §4.2's append_child. Ordering of existing entries is
// unaffected.
func (in *Inode) AppendChild(e Entry) {
	in.children = append(in.children, e)
}

// RemoveChildWhere retains every entry for which keep returns true,
// implementing §4.2's remove_child_where. The relative order of surviving
// entries is preserved. It reports whether any entry was removed.
func (in *Inode) RemoveChildWhere(keep func(Entry) bool) (removed bool) {
	out := in.children[:0]
	for _, e := range in.children {
		if keep(e) {
			out = append(out, e)
		} else {
			removed = true
		}
	}
	in.children = out
	return removed
}

// RemoveChildByName is a convenience wrapper around RemoveChildWhere for the
// common case of removing (at most) one entry by name.
func (in *Inode) RemoveChildByName(name string) bool {
	return in.RemoveChildWhere(func(e Entry) bool { return e.Name != name })
}

// Empty reports whether a Directory inode currently has zero children,
// the precondition rmdir enforces via ENOTEMPTY.
func (in *Inode) Empty() bool { return len(in.children) == 0 }
