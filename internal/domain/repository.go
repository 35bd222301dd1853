package domain

import (
	"context"
	"time"
)

// VisionClient defines the interface for the vision-capable completion
// service. AnalyzeImage sends one image with the extraction prompt and
// returns the model's reply text, with all text content blocks
// concatenated in order.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (string, error)
}

// CacheRepository defines the interface for caching extracted records
type CacheRepository interface {
	Get(ctx context.Context, key string) (*ProductRecord, error)
	Set(ctx context.Context, key string, record *ProductRecord, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
