// Package alloc hands out file space to the writer.
//
// Space is allocated append-only from the end of the file. Every block a
// [Space] allocates is recorded so writes can be checked against it:
//
//	sp := alloc.New(f, 48)
//	addr := sp.Alloc(uint64(len(b)))
//	err := sp.WriteAt(addr, b)
//
// Writes that fall outside allocated space fail with [ErrUnallocated].
package alloc
