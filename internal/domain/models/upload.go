package models

// FileMeta describes the file behind an upload session
type FileMeta struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadSession tracks a resumable chunked upload. LogicalID is generated
// client-side before any network call so the identifier stays stable
// across retries and across chunk calls.
type UploadSession struct {
	LogicalID         string   `json:"logical_id"`
	CurrentChunkIndex int      `json:"current_chunk_index"`
	TotalChunks       int      `json:"total_chunks"`
	FileMeta          FileMeta `json:"file_meta"`
}

// UploadReceipt is the reconciled result of a completed upload call
type UploadReceipt struct {
	LogicalID   string `json:"logical_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}
