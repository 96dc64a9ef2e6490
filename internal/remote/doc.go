// Package remote is the file-store collaborator used by inventory, dedup
// and sync.
//
// Every backend implements Store, which exposes exactly the verbs the rest
// of the program needs: list, create directory, retrieve, store and
// delete. Paths are slash-separated and absolute within the store
// ("/Photos/PhotoLibrary/trip"), whatever the backend's native form.
//
// Backends:
//   - local: a directory on disk, typically a mounted network share
//   - smb: an SMB2/3 share reached directly (github.com/hirochachacha/go-smb2)
//   - s3: an S3-compatible bucket (github.com/aws/aws-sdk-go-v2)
//
// Package remotetest holds an in-process Store for tests.
//
// Connect fails with ErrConnect when the store cannot be reached. Callers
// treat that as fatal to the remote operation as a whole.
package remote
