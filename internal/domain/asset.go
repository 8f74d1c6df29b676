package domain

import "time"

// UploadedAsset is an image received with a request. It lives only as long
// as the request does.
type UploadedAsset struct {
	Name string
	Data []byte
}

// StagedFile is an UploadedAsset written to the staging directory.
// The request that created it owns it and must remove it.
type StagedFile struct {
	Path      string
	CreatedAt time.Time
}

// Paths returns the paths of files in order.
func Paths(files []StagedFile) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths
}
