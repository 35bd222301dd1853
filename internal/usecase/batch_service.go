package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kaitori-compare/backend/internal/domain"
	"github.com/kaitori-compare/backend/internal/infrastructure/imaging"
)

// BatchServiceConfig holds configuration for the batch orchestrator
type BatchServiceConfig struct {
	MaxFileBytes int64
	PaceInterval time.Duration
	MaxDimension int
	JPEGQuality  int
}

// BatchService drives one extraction per uploaded image. Files are
// processed strictly sequentially; the limiter makes the inter-request
// delay an effective global rate limit on the completion service.
type BatchService struct {
	extractor    *Extractor
	limiter      *rate.Limiter
	maxFileBytes int64
	imgOpts      imaging.Options
}

// NewBatchService creates a new batch orchestrator
func NewBatchService(extractor *Extractor, config BatchServiceConfig) *BatchService {
	maxFileBytes := config.MaxFileBytes
	if maxFileBytes == 0 {
		maxFileBytes = 10 * 1024 * 1024
	}

	// Burst of 1: the first file proceeds immediately and the delay
	// lands between files, never after the last one.
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.PaceInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(config.PaceInterval), 1)
	}

	imgOpts := imaging.DefaultOptions
	if config.MaxDimension > 0 {
		imgOpts.MaxDimension = config.MaxDimension
	}
	if config.JPEGQuality > 0 {
		imgOpts.Quality = config.JPEGQuality
	}

	return &BatchService{
		extractor:    extractor,
		limiter:      limiter,
		maxFileBytes: maxFileBytes,
		imgOpts:      imgOpts,
	}
}

// ProcessBatch runs every file through the extraction pipeline and
// aggregates outcomes. One file's failure never aborts the batch; only
// cancellation does. The context is checked between files so a new
// upload can supersede an in-flight batch.
func (s *BatchService) ProcessBatch(ctx context.Context, files []domain.UploadFile) (*domain.BatchResult, error) {
	if len(files) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	result := &domain.BatchResult{
		Records:  []domain.ProductRecord{},
		Failures: []domain.FileFailure{},
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		record, err := s.processFile(ctx, file)
		if err != nil {
			log.Warn().
				Str("filename", file.Name).
				Err(err).
				Msg("file failed")
			result.Failures = append(result.Failures, domain.FileFailure{
				Filename: file.Name,
				Reason:   failureReason(err),
			})
			continue
		}

		log.Info().
			Str("filename", file.Name).
			Int("index", i+1).
			Int("total", len(files)).
			Msg("file analyzed")
		result.Records = append(result.Records, *record)
	}

	result.Finalize(len(files))
	return result, nil
}

// processFile validates, compresses, and extracts one file
func (s *BatchService) processFile(ctx context.Context, file domain.UploadFile) (*domain.ProductRecord, error) {
	if len(file.Data) == 0 {
		return nil, domain.ErrEmptyFile
	}
	if int64(len(file.Data)) > s.maxFileBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrFileTooLarge, len(file.Data), s.maxFileBytes)
	}

	compressed, err := imaging.Compress(file.Data, s.imgOpts)
	if err != nil {
		return nil, err
	}

	return s.extractor.Extract(ctx, compressed)
}

// failureReason renders a per-file error in the wording the comparison
// UI shows to the user.
func failureReason(err error) string {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrEmptyFile):
		return "ファイルが空です"
	case errors.Is(err, domain.ErrFileTooLarge):
		return "ファイルサイズが大きすぎます（10MB以下）"
	case errors.Is(err, imaging.ErrDecode):
		return "画像読み込みエラー"
	case errors.As(err, &upstream):
		return fmt.Sprintf("API error: %d", upstream.StatusCode)
	default:
		return err.Error()
	}
}
