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
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/vffs/vffs/fs/inode"
)

// dirHandle is the state kept for an open directory descriptor, minted by
// OpenDir and consulted by ReadDir. Unlike the teacher's GCS-backed
// directory handle -- which had to buffer a page of listing results and
// track a continuation token because GCS's List API has no stable cursor --
// VFFS's children are already in memory, in a stable order, so a handle
// here needs nothing but a reference to the directory inode it was opened
// against. readInto re-derives the listing from that inode on every call.
type dirHandle struct {
	dir *inode.Inode
}

func newDirHandle(dir *inode.Inode) *dirHandle {
	return &dirHandle{dir: dir}
}

// readInto serves §4.5's readdir contract: skip entries whose positional
// index is below offset, then append successive entries to dst until it
// would overflow, using 1-based cursors that increase by exactly one per
// entry.
func (dh *dirHandle) readInto(dst []byte, offset fuseops.DirOffset) (int, error) {
	children := dh.dir.Children()
	start := int(offset)
	if start > len(children) {
		return 0, errInvalid
	}

	n := 0
	for i := start; i < len(children); i++ {
		e := children[i]
		d := fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  e.ChildID,
			Name:   e.Name,
			Type:   e.Kind.DirentType(),
		}

		rec := fuseutil.WriteDirent(dst[n:], d)
		if rec == 0 {
			break
		}
		n += rec
	}

	return n, nil
}
