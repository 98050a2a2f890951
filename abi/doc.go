// Package abi holds the wasi_snapshot_preview1 constant vocabulary and the
// little-endian record layouts exchanged with the guest.
//
// Records written by the Codec:
//
//	iovec     8 bytes   u32 offset, u32 length
//	filestat 56 bytes   dev@0 ino@8 filetype@16 nlink@24 size@32 atim@40 mtim@48
//	fdstat   24 bytes   filetype@0 flags@2 rights_base@8 rights_inheriting@16
//	prestat   8 bytes   tag@0 name_len@4
//
// Only the fields this runtime tracks are populated; everything else is zero.
package abi
