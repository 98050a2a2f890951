package abi

import (
	"encoding/binary"

	"github.com/wippyai/wasishim"
)

// Record sizes in bytes.
const (
	IOVecSize    = 8
	FilestatSize = 56
	FdstatSize   = 24
	PrestatSize  = 8
)

// Codec marshals preview1 records into guest memory. It never grows memory:
// writes past the end fail with the memory's out-of-bounds error.
type Codec struct{}

// NewCodec returns a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// ByteLength returns the encoded length of s.
func (c *Codec) ByteLength(s string) uint32 {
	return uint32(len(s))
}

// WriteString stores the UTF-8 bytes of s at offset and returns the number of
// bytes written.
func (c *Codec) WriteString(mem wasishim.Memory, offset uint32, s string) (uint32, error) {
	if err := mem.Write(offset, []byte(s)); err != nil {
		return 0, err
	}
	return uint32(len(s)), nil
}

// ReadString copies length bytes at offset out of guest memory.
func (c *Codec) ReadString(mem wasishim.Memory, offset, length uint32) (string, error) {
	data, err := mem.Read(offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IOVecs decodes count iovec records starting at iovs into views over guest
// memory, in order.
func (c *Codec) IOVecs(mem wasishim.Memory, iovs, count uint32) ([][]byte, error) {
	bufs := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		rec := iovs + i*IOVecSize
		offset, err := mem.ReadU32(rec)
		if err != nil {
			return nil, err
		}
		length, err := mem.ReadU32(rec + 4)
		if err != nil {
			return nil, err
		}
		buf, err := mem.Read(offset, length)
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, buf)
	}
	return bufs, nil
}

// WriteFilestat writes a filestat record carrying filetype and size.
func (c *Codec) WriteFilestat(mem wasishim.Memory, ptr uint32, filetype Filetype, size uint64) error {
	var rec [FilestatSize]byte
	rec[16] = byte(filetype)
	binary.LittleEndian.PutUint64(rec[32:], size)
	return mem.Write(ptr, rec[:])
}

// WriteFdstat writes an fdstat record with zero rights.
func (c *Codec) WriteFdstat(mem wasishim.Memory, ptr uint32, filetype Filetype, flags uint16) error {
	var rec [FdstatSize]byte
	rec[0] = byte(filetype)
	binary.LittleEndian.PutUint16(rec[2:], flags)
	return mem.Write(ptr, rec[:])
}

// WritePrestat writes a directory prestat record.
func (c *Codec) WritePrestat(mem wasishim.Memory, ptr uint32, nameLen uint32) error {
	var rec [PrestatSize]byte
	rec[0] = PrestatDir
	binary.LittleEndian.PutUint32(rec[4:], nameLen)
	return mem.Write(ptr, rec[:])
}

// WriteStrings lays out NUL-terminated strings back to back at buf and stores
// a pointer to each one in the u32 array at ptrs.
func (c *Codec) WriteStrings(mem wasishim.Memory, ptrs, buf uint32, values []string) error {
	for i, v := range values {
		if err := mem.WriteU32(ptrs+uint32(i)*4, buf); err != nil {
			return err
		}
		n, err := c.WriteString(mem, buf, v)
		if err != nil {
			return err
		}
		if err := mem.WriteU8(buf+n, 0); err != nil {
			return err
		}
		buf += n + 1
	}
	return nil
}

// WriteSizes stores the count of values and the total buffer size they need
// when NUL-terminated.
func (c *Codec) WriteSizes(mem wasishim.Memory, countPtr, sizePtr uint32, values []string) error {
	var size uint32
	for _, v := range values {
		size += c.ByteLength(v) + 1
	}
	if err := mem.WriteU32(countPtr, uint32(len(values))); err != nil {
		return err
	}
	return mem.WriteU32(sizePtr, size)
}
