// Package inventory hashes every file below a remote root.
//
// Walk traverses the tree with an explicit stack rather than recursion so
// deep photo libraries cannot exhaust the goroutine stack. Each file is
// retrieved into memory, hashed, and discarded; only its path, digest,
// creation time and size are kept.
//
// Hashing a large library over a network share is slow, so the result can
// be saved as a snapshot and loaded again later instead of walking. Which
// one to use is the caller's decision: a snapshot is fast but may be stale.
package inventory
