package abi

import "fmt"

// Errno is the result code every preview1 call returns to the guest.
type Errno uint16

const (
	ErrnoSuccess Errno = 0
	ErrnoExist   Errno = 20
	ErrnoBadf    Errno = 8
	ErrnoInval   Errno = 28
	ErrnoIo      Errno = 29
	ErrnoIsdir   Errno = 31
	ErrnoNoent   Errno = 44
	ErrnoNosys   Errno = 52
	ErrnoNotdir  Errno = 54
)

var errnoNames = map[Errno]string{
	ErrnoSuccess: "ESUCCESS",
	ErrnoExist:   "EEXIST",
	ErrnoBadf:    "EBADF",
	ErrnoInval:   "EINVAL",
	ErrnoIo:      "EIO",
	ErrnoIsdir:   "EISDIR",
	ErrnoNoent:   "ENOENT",
	ErrnoNosys:   "ENOSYS",
	ErrnoNotdir:  "ENOTDIR",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno(%d)", uint16(e))
}

// Clock identifiers.
const (
	ClockRealtime  uint32 = 0
	ClockMonotonic uint32 = 1
)

// Filetype is the file type byte of filestat and fdstat records.
type Filetype uint8

const (
	FiletypeUnknown     Filetype = 0
	FiletypeBlockDevice Filetype = 1
	FiletypeCharDevice  Filetype = 2
	FiletypeDirectory   Filetype = 3
	FiletypeRegularFile Filetype = 4
)

// Whence values for fd_seek.
const (
	WhenceSet uint32 = 0
	WhenceCur uint32 = 1
	WhenceEnd uint32 = 2
)

// Oflags are the path_open creation flags.
type Oflags uint16

const (
	OflagCreat     Oflags = 1 << 0
	OflagDirectory Oflags = 1 << 1
	OflagExcl      Oflags = 1 << 2
	OflagTrunc     Oflags = 1 << 3
)

// Has reports whether all bits of flag are set.
func (o Oflags) Has(flag Oflags) bool {
	return o&flag == flag
}

// PrestatDir is the only prestat tag.
const PrestatDir uint8 = 0
