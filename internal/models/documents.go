// Package models defines the document packaging types shared by the client
// and the server: the archive manifest persisted with an application record
// and the extracted file set held by the local cache.
package models

// ManifestEntry describes one file packaged into an application archive.
type ManifestEntry struct {
	// FileName is the sanitized name of the entry inside the archive.
	FileName string `json:"fileName" yaml:"fileName"`
	// OriginalTitle is the title the proponent gave the document.
	OriginalTitle string `json:"originalTitle" yaml:"originalTitle"`
	// Size is the byte length of the original file.
	Size int64 `json:"size" yaml:"size"`
	// Type is the content type resolved from the original file name.
	Type string `json:"type" yaml:"type"`
	// UploadedAt is the packaging time in epoch milliseconds.
	UploadedAt int64 `json:"uploadedAt" yaml:"uploadedAt"`
}

// DocumentsMeta is the packaging metadata owned by an application record.
// ZipHash changes if and only if the archive bytes change.
type DocumentsMeta struct {
	ZipHash         string          `json:"zipHash" yaml:"zipHash"`
	ZipLastModified int64           `json:"zipLastModified" yaml:"zipLastModified"`
	ZipDownloadURL  string          `json:"zipDownloadUrl" yaml:"zipDownloadUrl"`
	FileManifest    []ManifestEntry `json:"fileManifest" yaml:"fileManifest"`
}

// FileMap maps archive entry names to their contents.
type FileMap map[string][]byte

// Names returns the entry names of m in no particular order.
func (m FileMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
