package port

import "context"

type ObjectStorage interface {
	FetchSource(ctx context.Context, objectKey string) ([]byte, error)
	UploadArchive(ctx context.Context, objectKey string, data []byte) error
	UploadAnimation(ctx context.Context, objectKey string, data []byte) error
}
