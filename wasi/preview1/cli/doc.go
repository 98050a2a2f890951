// Package cli provides the argument and environment features.
//
// Both use the same wire shape: a sizes call reporting the entry count and
// the total byte size of the NUL-terminated entries, and a get call writing a
// pointer array plus the entries back to back. Environment entries are
// "KEY=value" sorted by key so that consecutive calls agree.
package cli
