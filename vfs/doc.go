// Package vfs implements the in-memory filesystem tree served to guests.
//
// The tree is made of three node kinds: directories, regular files and the
// character device at /dev/null. A regular file holds its bytes in memory or
// delegates to a Blob that is fetched range by range on demand.
//
// Path resolution is deliberately simple: "." is ignored and ".." always
// jumps to the root of the tree, not to the parent directory.
//
// An FS is owned by one guest instance and is not safe for concurrent use.
package vfs
