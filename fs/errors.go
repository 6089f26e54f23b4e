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

import "syscall"

// The complete error taxonomy a handler may return, per §4.6. Every handler
// returns one of these (or nil); nothing else escapes to the bridge. The
// jacobsa/fuse dispatcher recognizes a bare syscall.Errno and forwards its
// numeric value verbatim, which is the exact "numeric error matching
// standard errno values" contract §6 describes.
const (
	errNotFound     = syscall.ENOENT
	errNotDir       = syscall.ENOTDIR
	errIsDir        = syscall.EISDIR
	errExists       = syscall.EEXIST
	errNotEmpty     = syscall.ENOTEMPTY
	errNameTooLong  = syscall.ENAMETOOLONG
	errFileTooBig   = syscall.EFBIG
	errNoMemory     = syscall.ENOMEM
	errAccessDenied = syscall.EACCES
	errInvalid      = syscall.EINVAL
	errIO           = syscall.EIO
)

// maxNameLength is the fixed 255-byte ceiling on a directory entry's name,
// per §3's global limits.
const maxNameLength = 255

// validateName rejects names exceeding maxNameLength before any mutation
// takes place, implementing §4.4's up-front name validation.
func validateName(name string) error {
	if len(name) > maxNameLength {
		return errNameTooLong
	}
	return nil
}
