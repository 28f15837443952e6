// Package mmap provides read-only memory-mapped file access for zero-copy I/O.
//
// Binary matrix files can reach gigabytes; mapping them avoids copying the
// point data through userspace buffers and lets the kernel page it on demand.
//
//	m, err := mmap.Open("points.bin")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//	m.Advise(mmap.AccessRandom) // tree search touches points out of order
//
// Unix (Linux, macOS, BSD) uses mmap(2) with madvise(2) for access hints;
// Windows uses CreateFileMapping/MapViewOfFile and ignores hints.
//
// Mappings are safe for concurrent reads. Close is idempotent, but callers
// must ensure no goroutine touches Bytes() after Close returns.
package mmap
