// Package remotesync pushes a local output folder into a remote store.
//
// A sync lists the remote folder once and then walks the local folder in
// name order. Files whose name already exists remotely are skipped without
// comparing content. In move mode each transferred file is removed locally
// and the folder itself is removed once it is empty. A failed transfer
// leaves the local file where it is; it is logged and not retried.
package remotesync
