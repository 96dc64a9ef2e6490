// Package digest computes the content digests used to identify images.
//
// A digest is the lowercase hex encoding of a fixed-length hash over the raw
// bytes of a file. Identical bytes always produce an identical digest no
// matter where they were downloaded from, which is what lets both the crawl
// metadata store and the remote inventory treat the digest as the identity
// of a photo.
//
// MD5 is the default because existing metadata and inventory snapshots were
// written with it. SHA-256, SHA3-256 and BLAKE2b-256 are available for new
// libraries where collision resistance matters more than compatibility.
package digest
