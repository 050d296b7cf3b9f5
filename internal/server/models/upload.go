package models

import "time"

// Upload records a storage key handed out with a presigned PUT URL, so a
// later commit can be checked against the application it was issued for.
type Upload struct {
	StorageKey      string
	ApplicationCode string
	CreatedAt       time.Time
	CommittedAt     *time.Time
}

// UploadTask instructs the client to upload an archive using a presigned URL.
type UploadTask struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
