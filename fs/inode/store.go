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

package inode

import (
	"fmt"
)

// Store is the id-keyed map owning every Inode in the filesystem, plus the
// running total of bytes those inodes occupy. It performs no capacity
// checks of its own -- §4.1 makes that the handler's responsibility, since
// only the handler knows the size before and after a mutation.
//
// Store is not safe for concurrent use. VFFS's single-threaded dispatch
// model (the filesystem's concurrency design, §5) means that is never
// required: fs.fileSystem serializes every request before touching a Store.
type Store struct {
	byID      map[ID]*Inode
	nextID    ID
	totalSize uint64
}

// NewStore creates a Store pre-populated with the given root inode.
func NewStore(root *Inode) *Store {
	s := &Store{
		byID:   make(map[ID]*Inode),
		nextID: 2,
	}
	s.insertLocked(root)
	return s
}

// AllocateID mints the next serial inode id, implementing §4.3's identifier
// allocation: a monotonically increasing counter starting at 2, never
// reused within a run. The root's reserved id 1 is never issued here.
func (s *Store) AllocateID() ID {
	id := s.nextID
	s.nextID++
	return id
}

// Insert adds a new inode to the store, increasing total_size by its Size.
// It panics if the id is already present; callers only ever insert
// freshly-minted ids, so a collision indicates a programming error, not a
// recoverable runtime condition.
func (s *Store) Insert(in *Inode) {
	if _, exists := s.byID[in.ID]; exists {
		panic(fmt.Sprintf("inode: duplicate insert of id %d", in.ID))
	}
	s.insertLocked(in)
}

func (s *Store) insertLocked(in *Inode) {
	s.byID[in.ID] = in
	s.totalSize += in.Size
}

// Remove deletes the inode with the given id, decreasing total_size by its
// Size. It is a no-op if the id is absent.
func (s *Store) Remove(id ID) {
	in, ok := s.byID[id]
	if !ok {
		return
	}
	s.totalSize -= in.Size
	delete(s.byID, id)
}

// Get returns the inode with the given id, or false if absent.
func (s *Store) Get(id ID) (*Inode, bool) {
	in, ok := s.byID[id]
	return in, ok
}

// TotalSize returns the running sum of every contained inode's Size,
// satisfying invariant (3) and testable property (P2) as long as every
// mutation of an inode's Size goes through AdjustSize.
func (s *Store) TotalSize() uint64 {
	return s.totalSize
}

// Count returns the number of inodes currently in the store. Exposed for
// metrics and tests, not used by any handler's control flow.
func (s *Store) Count() int {
	return len(s.byID)
}

// Walk invokes fn once for every id currently in the store. Used by the
// filesystem's invariant checker and by tests; no handler's control flow
// depends on iteration order.
func (s *Store) Walk(fn func(ID)) {
	for id := range s.byID {
		fn(id)
	}
}

// AdjustSize sets an inode's recorded Size to newSize (which may be smaller
// or larger than the old one) and keeps the store's total_size counter in
// lockstep. Every
// handler that changes a File's content length (write, setattr with an
// explicit size) must go through this instead of writing in.Size directly,
// or invariant (3) breaks.
func (s *Store) AdjustSize(in *Inode, newSize uint64) {
	if newSize == in.Size {
		return
	}
	if newSize > in.Size {
		s.totalSize += newSize - in.Size
	} else {
		s.totalSize -= in.Size - newSize
	}
	in.Size = newSize
}
