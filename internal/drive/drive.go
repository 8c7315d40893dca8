// Package drive is the cloud file-storage collaborator. The service only
// ever needs two idempotent primitives against a per-user folder tree:
// create a folder unless it already exists, and upload a file unless it
// already exists.
package drive

import (
	"context"

	"github.com/karl-chan/google-drive-torrent/internal/identity"
)

// Folder describes a created (or pre-existing) folder in the user's tree.
type Folder struct {
	ID   string
	Name string
	Link string
}

// Object describes an uploaded (or pre-existing) file.
type Object struct {
	ID   string
	Path string
}

// Drive is the storage contract. Both operations must be idempotent from the
// caller's perspective: repeating a call for the same (user, path) pair is
// a no-op that returns the existing entry. creds is the calling user's
// stored credential handle; implementations with user-scoped auth present
// it to the storage provider, implementations with deployment-scoped auth
// may ignore it.
type Drive interface {
	EnsureFolder(ctx context.Context, userID string, creds identity.Credentials, path string) (Folder, error)
	UploadIfAbsent(ctx context.Context, userID string, creds identity.Credentials, localPath, remotePath string) (Object, error)
}
