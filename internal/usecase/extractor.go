package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/kaitori-compare/backend/internal/domain"
)

// sampleLimit bounds the diagnostic fragment attached to parse failures
const sampleLimit = 200

// Package-level compiled regex patterns for fence stripping
var (
	fencedJSONRegex = regexp.MustCompile("```json\\s*")
	bareFenceRegex  = regexp.MustCompile("```\\s*")
)

// ExtractorConfig holds configuration for the extractor
type ExtractorConfig struct {
	CacheTTL time.Duration
}

// Extractor turns one screenshot into a validated ProductRecord. The
// model's reply is untrusted free text; every step degrades to a
// specific, diagnosable error kind so the batch layer can report
// per-file failure reasons.
type Extractor struct {
	client   domain.VisionClient
	cache    domain.CacheRepository
	cacheTTL time.Duration
}

// NewExtractor creates a new extractor with dependencies. The cache is
// optional; pass nil to disable it.
func NewExtractor(client domain.VisionClient, cache domain.CacheRepository, config ExtractorConfig) *Extractor {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &Extractor{
		client:   client,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Extract sends the image to the completion service and parses the reply
// into a ProductRecord.
// Flow: check cache -> call vision model -> parse and normalize -> cache -> return
func (e *Extractor) Extract(ctx context.Context, imageData []byte) (*domain.ProductRecord, error) {
	if len(imageData) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := contentKey(imageData)

	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			log.Debug().Str("key", cacheKey[:12]).Msg("extraction cache hit")
			return cached, nil
		}
	}

	// The batch path always sends re-encoded JPEG, but the single-image
	// endpoint forwards the upload as-is, so sniff the actual type.
	text, err := e.client.AnalyzeImage(ctx, imageData, http.DetectContentType(imageData))
	if err != nil {
		return nil, err
	}

	record, err := ParseRecord(text)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, record, e.cacheTTL); err != nil {
			// Cache failures never fail the extraction
			log.Warn().Err(err).Msg("failed to cache extraction result")
		}
	}

	log.Info().
		Str("productName", record.ProductName).
		Int("shops", len(record.Shops)).
		Msg("screenshot extracted")

	return record, nil
}

// rawRecord mirrors the model's JSON loosely. Optional fields and prices
// arrive as whatever type the model chose despite instructions, so they
// are coerced during normalization.
type rawRecord struct {
	ProductName   any             `json:"productName"`
	ProductCode   any             `json:"productCode"`
	Quantity      any             `json:"quantity"`
	PurchasePrice any             `json:"purchasePrice"`
	Shops         json.RawMessage `json:"shops"`
}

type rawShop struct {
	Name     string `json:"name"`
	BuyPrice any    `json:"buyPrice"`
	Profit   any    `json:"profit"`
	TimeAgo  any    `json:"timeAgo"`
}

// ParseRecord turns the model's reply text into a validated, normalized
// ProductRecord. It tolerates markdown fences and stray prose around the
// JSON object but never assumes well-formed output.
func ParseRecord(text string) (*domain.ProductRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyResponse
	}

	candidate, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw rawRecord
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v (sample: %s)", domain.ErrMalformedJSON, err, truncate(candidate, sampleLimit))
	}

	productName := asString(raw.ProductName)
	if productName == "" {
		return nil, fmt.Errorf("%w: productName", domain.ErrMissingField)
	}

	// json.Unmarshal accepts "null" into a slice, so require a literal
	// array before decoding
	shopsJSON := bytes.TrimSpace(raw.Shops)
	if len(shopsJSON) == 0 || shopsJSON[0] != '[' {
		return nil, fmt.Errorf("%w: shops is not an array", domain.ErrInvalidShape)
	}
	var shops []rawShop
	if err := json.Unmarshal(shopsJSON, &shops); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: shops is not an array", domain.ErrInvalidShape)
		}
		return nil, fmt.Errorf("%w: %v (sample: %s)", domain.ErrMalformedJSON, err, truncate(candidate, sampleLimit))
	}

	record := &domain.ProductRecord{
		ProductName:   productName,
		ProductCode:   asString(raw.ProductCode),
		Quantity:      asString(raw.Quantity),
		PurchasePrice: asString(raw.PurchasePrice),
		Shops:         make([]domain.ShopOffer, 0, len(shops)),
	}

	for _, s := range shops {
		buyPrice := normalizeAmount(s.BuyPrice)
		if buyPrice <= 0 {
			// Zero-price offers are excluded by policy, not at render time
			continue
		}
		record.Shops = append(record.Shops, domain.ShopOffer{
			Name:     s.Name,
			BuyPrice: buyPrice,
			Profit:   normalizeAmount(s.Profit),
			TimeAgo:  asString(s.TimeAgo),
		})
	}

	return record, nil
}

// extractJSONObject strips markdown code fences and locates the first
// {...} span with a greedy first-brace to last-brace scan. The model may
// prepend or append stray prose despite being told not to.
func extractJSONObject(text string) (string, error) {
	cleaned := fencedJSONRegex.ReplaceAllString(text, "")
	cleaned = bareFenceRegex.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: %s", domain.ErrNoJSONFound, truncate(text, sampleLimit))
	}

	return cleaned[start : end+1], nil
}

// normalizeAmount coerces a price value to an integer. Numbers pass
// through unchanged, so applying this twice is a no-op; strings are
// parsed after removing thousands-separator commas. Anything unparsable
// normalizes to 0 and falls to the zero-price exclusion.
func normalizeAmount(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return 0
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

// asString coerces an optional free-form field to a trimmed string,
// tolerating the model emitting a number where a string was asked for.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// truncate bounds a diagnostic fragment to n bytes without splitting a
// multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// contentKey derives the cache key from the image bytes
func contentKey(imageData []byte) string {
	sum := sha256.Sum256(imageData)
	return hex.EncodeToString(sum[:])
}
