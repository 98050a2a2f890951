// Package filesystem provides the descriptor table and the fd_* and path_*
// handlers over a vfs.FS.
//
// Descriptors 0, 1 and 2 are the stdio streams. Preopened directories take
// consecutive descriptors from 3 in registration order, and every later open
// takes the next unused number. Numbers are never reused after close.
//
// Opening the same guest path twice while it is still open returns the
// existing descriptor:
//
//	t, _ := filesystem.NewTable(fs, stdio)
//	fd, errno := t.Open(3, "a.txt", abi.OflagCreat)
//
// Reads of lazily backed files fetch one byte range per destination buffer.
// The fd_read handler returns those reads as deferred results so a guest
// built with asyncify suspends while the range is fetched.
package filesystem
