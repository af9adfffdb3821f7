// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps occurrence exports and result parts instead of
// streaming them through read(2). Large exports are scanned front to back once,
// so callers advise the kernel with AccessSequential before handing out a reader.
//
//	m, err := mmap.Open("occurrence.tsv")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	r := m.Reader()
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping/MapViewOfFile
// and treats Advise as a no-op.
//
// A Mapping is safe for concurrent reads. Close is idempotent; callers must not
// touch Bytes() after Close returns.
package mmap
