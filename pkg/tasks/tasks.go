// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ThumbnailTask represents the data structure for a video thumbnail job.
type ThumbnailTask struct {
	FileID   string `json:"file_id"`
	S3Key    string `json:"s3_key"`
	MimeType string `json:"mime_type"`
}
