package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kaitori-compare/backend/internal/domain"
	"github.com/kaitori-compare/backend/internal/infrastructure/cache"
)

// fakeVisionClient returns a canned reply and records how it was called
type fakeVisionClient struct {
	reply    string
	err      error
	calls    int
	lastMime string
}

func (f *fakeVisionClient) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	f.calls++
	f.lastMime = mimeType
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestParseRecord(t *testing.T) {
	t.Run("parses a plain JSON reply", func(t *testing.T) {
		text := `{"productName":"Nintendo Switch 有機EL","productCode":"HEG-S-KAAAA","quantity":"1","purchasePrice":"37980","shops":[{"name":"商店","buyPrice":31000,"profit":-6980,"timeAgo":"3時間前"}]}`

		record, err := ParseRecord(text)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}

		if record.ProductName != "Nintendo Switch 有機EL" {
			t.Errorf("ProductName = %q", record.ProductName)
		}
		if record.ProductCode != "HEG-S-KAAAA" {
			t.Errorf("ProductCode = %q", record.ProductCode)
		}
		if len(record.Shops) != 1 {
			t.Fatalf("len(Shops) = %d, want 1", len(record.Shops))
		}
		if record.Shops[0].BuyPrice != 31000 {
			t.Errorf("BuyPrice = %d, want 31000", record.Shops[0].BuyPrice)
		}
		if record.Shops[0].Profit != -6980 {
			t.Errorf("Profit = %d, want -6980", record.Shops[0].Profit)
		}
	})

	t.Run("strips markdown fences and surrounding prose", func(t *testing.T) {
		text := "Here is the result:\n```json\n{\"productName\":\"X\",\"shops\":[{\"name\":\"A\",\"buyPrice\":\"1,000\",\"profit\":0,\"timeAgo\":\"1h\"}]}\n```"

		record, err := ParseRecord(text)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}

		if record.ProductName != "X" {
			t.Errorf("ProductName = %q, want X", record.ProductName)
		}
		if len(record.Shops) != 1 {
			t.Fatalf("len(Shops) = %d, want 1", len(record.Shops))
		}
		got := record.Shops[0]
		if got.Name != "A" || got.BuyPrice != 1000 || got.Profit != 0 || got.TimeAgo != "1h" {
			t.Errorf("Shops[0] = %+v, want {A 1000 0 1h}", got)
		}
	})

	t.Run("fenced and unfenced replies parse identically", func(t *testing.T) {
		body := `{"productName":"X","shops":[{"name":"A","buyPrice":500,"profit":10}]}`

		plain, err := ParseRecord(body)
		if err != nil {
			t.Fatalf("plain: %v", err)
		}
		fenced, err := ParseRecord("```json\n" + body + "\n```")
		if err != nil {
			t.Fatalf("fenced: %v", err)
		}

		if plain.ProductName != fenced.ProductName || len(plain.Shops) != len(fenced.Shops) {
			t.Errorf("fenced parse diverged: %+v vs %+v", plain, fenced)
		}
		if plain.Shops[0] != fenced.Shops[0] {
			t.Errorf("Shops[0] diverged: %+v vs %+v", plain.Shops[0], fenced.Shops[0])
		}
	})

	t.Run("normalizes comma-formatted price strings", func(t *testing.T) {
		text := `{"productName":"X","shops":[{"name":"A","buyPrice":"18,500","profit":"-1,200"}]}`

		record, err := ParseRecord(text)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}
		if record.Shops[0].BuyPrice != 18500 {
			t.Errorf("BuyPrice = %d, want 18500", record.Shops[0].BuyPrice)
		}
		if record.Shops[0].Profit != -1200 {
			t.Errorf("Profit = %d, want -1200", record.Shops[0].Profit)
		}
	})

	t.Run("drops zero and negative price offers", func(t *testing.T) {
		text := `{"productName":"X","shops":[{"name":"A","buyPrice":0,"profit":0},{"name":"B","buyPrice":100,"profit":5},{"name":"C","buyPrice":-50,"profit":0}]}`

		record, err := ParseRecord(text)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}
		if len(record.Shops) != 1 || record.Shops[0].Name != "B" {
			t.Errorf("Shops = %+v, want only B", record.Shops)
		}
	})

	t.Run("coerces numeric optional fields to strings", func(t *testing.T) {
		text := `{"productName":"X","productCode":12345,"quantity":2,"purchasePrice":"9,800円","shops":[{"name":"A","buyPrice":1,"profit":0}]}`

		record, err := ParseRecord(text)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}
		if record.ProductCode != "12345" {
			t.Errorf("ProductCode = %q, want 12345", record.ProductCode)
		}
		if record.Quantity != "2" {
			t.Errorf("Quantity = %q, want 2", record.Quantity)
		}
		if record.PurchasePrice != "9,800円" {
			t.Errorf("PurchasePrice = %q", record.PurchasePrice)
		}
	})

	t.Run("empty text fails with ErrEmptyResponse", func(t *testing.T) {
		_, err := ParseRecord("   \n ")
		if !errors.Is(err, domain.ErrEmptyResponse) {
			t.Errorf("error = %v, want ErrEmptyResponse", err)
		}
	})

	t.Run("text without braces fails with ErrNoJSONFound", func(t *testing.T) {
		_, err := ParseRecord("申し訳ありませんが、この画像から情報を読み取れませんでした。")
		if !errors.Is(err, domain.ErrNoJSONFound) {
			t.Errorf("error = %v, want ErrNoJSONFound", err)
		}
	})

	t.Run("no-JSON failure carries a truncated sample", func(t *testing.T) {
		long := make([]byte, 500)
		for i := range long {
			long[i] = 'a'
		}
		_, err := ParseRecord(string(long))
		if !errors.Is(err, domain.ErrNoJSONFound) {
			t.Fatalf("error = %v, want ErrNoJSONFound", err)
		}
		if len(err.Error()) > len(domain.ErrNoJSONFound.Error())+2+sampleLimit {
			t.Errorf("sample not truncated: %d chars", len(err.Error()))
		}
	})

	t.Run("broken JSON fails with ErrMalformedJSON", func(t *testing.T) {
		_, err := ParseRecord(`{"productName": "X", "shops": [}`)
		if !errors.Is(err, domain.ErrMalformedJSON) {
			t.Errorf("error = %v, want ErrMalformedJSON", err)
		}
	})

	t.Run("missing productName fails with ErrMissingField", func(t *testing.T) {
		_, err := ParseRecord(`{"shops":[{"name":"A","buyPrice":100,"profit":0}]}`)
		if !errors.Is(err, domain.ErrMissingField) {
			t.Errorf("error = %v, want ErrMissingField", err)
		}
	})

	t.Run("empty productName fails with ErrMissingField", func(t *testing.T) {
		_, err := ParseRecord(`{"productName":"","shops":[]}`)
		if !errors.Is(err, domain.ErrMissingField) {
			t.Errorf("error = %v, want ErrMissingField", err)
		}
	})

	t.Run("non-array shops fails with ErrInvalidShape", func(t *testing.T) {
		_, err := ParseRecord(`{"productName":"X","shops":"none"}`)
		if !errors.Is(err, domain.ErrInvalidShape) {
			t.Errorf("error = %v, want ErrInvalidShape", err)
		}
	})

	t.Run("missing shops fails with ErrInvalidShape", func(t *testing.T) {
		_, err := ParseRecord(`{"productName":"X"}`)
		if !errors.Is(err, domain.ErrInvalidShape) {
			t.Errorf("error = %v, want ErrInvalidShape", err)
		}
	})

	t.Run("null shops fails with ErrInvalidShape", func(t *testing.T) {
		_, err := ParseRecord(`{"productName":"X","shops":null}`)
		if !errors.Is(err, domain.ErrInvalidShape) {
			t.Errorf("error = %v, want ErrInvalidShape", err)
		}
	})

	t.Run("numeric shops fails with ErrInvalidShape", func(t *testing.T) {
		_, err := ParseRecord(`{"productName":"X","shops":0}`)
		if !errors.Is(err, domain.ErrInvalidShape) {
			t.Errorf("error = %v, want ErrInvalidShape", err)
		}
	})

	t.Run("empty shops array is valid", func(t *testing.T) {
		record, err := ParseRecord(`{"productName":"X","shops":[]}`)
		if err != nil {
			t.Fatalf("ParseRecord() error = %v, want nil", err)
		}
		if len(record.Shops) != 0 {
			t.Errorf("len(Shops) = %d, want 0", len(record.Shops))
		}
	})
}

func TestNormalizeAmount(t *testing.T) {
	testCases := []struct {
		name string
		in   any
		want int
	}{
		{"number passes through", float64(18500), 18500},
		{"comma string", "18,500", 18500},
		{"plain string", "500", 500},
		{"negative string", "-6,980", -6980},
		{"garbage string", "不明", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"float string", "1200.5", 1200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeAmount(tc.in); got != tc.want {
				t.Errorf("normalizeAmount(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}

	t.Run("is idempotent", func(t *testing.T) {
		once := normalizeAmount("18,500")
		twice := normalizeAmount(once)
		if once != 18500 || twice != 18500 {
			t.Errorf("normalizeAmount twice = %d then %d, want 18500 both times", once, twice)
		}
	})
}

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		if got := truncate("abc", 10); got != "abc" {
			t.Errorf("truncate = %q, want abc", got)
		}
	})

	t.Run("cuts on a rune boundary", func(t *testing.T) {
		// 3 bytes per rune; 200 is not a multiple of 3, so a byte cut
		// would split the 67th rune
		long := strings.Repeat("あ", 100)
		got := truncate(long, sampleLimit)
		if len(got) > sampleLimit {
			t.Errorf("len = %d, want <= %d", len(got), sampleLimit)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncated sample is not valid UTF-8: %q", got)
		}
		if len(got) != 198 {
			t.Errorf("len = %d, want 198", len(got))
		}
	})

	t.Run("japanese reply sample stays valid UTF-8", func(t *testing.T) {
		_, err := ParseRecord(strings.Repeat("読み取れませんでした。", 30))
		if !errors.Is(err, domain.ErrNoJSONFound) {
			t.Fatalf("error = %v, want ErrNoJSONFound", err)
		}
		if !utf8.ValidString(err.Error()) {
			t.Errorf("error message is not valid UTF-8: %q", err.Error())
		}
	})
}

func TestExtract(t *testing.T) {
	validReply := `{"productName":"X","shops":[{"name":"A","buyPrice":100,"profit":10}]}`

	t.Run("returns the parsed record", func(t *testing.T) {
		client := &fakeVisionClient{reply: validReply}
		extractor := NewExtractor(client, nil, ExtractorConfig{})

		record, err := extractor.Extract(context.Background(), []byte("image-bytes"))
		if err != nil {
			t.Fatalf("Extract() error = %v, want nil", err)
		}
		if record.ProductName != "X" {
			t.Errorf("ProductName = %q, want X", record.ProductName)
		}
	})

	t.Run("declares the sniffed media type", func(t *testing.T) {
		client := &fakeVisionClient{reply: validReply}
		extractor := NewExtractor(client, nil, ExtractorConfig{})

		pngBytes := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, make([]byte, 16)...)
		if _, err := extractor.Extract(context.Background(), pngBytes); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if client.lastMime != "image/png" {
			t.Errorf("mimeType = %q, want image/png", client.lastMime)
		}

		jpegBytes := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 16)...)
		if _, err := extractor.Extract(context.Background(), jpegBytes); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if client.lastMime != "image/jpeg" {
			t.Errorf("mimeType = %q, want image/jpeg", client.lastMime)
		}
	})

	t.Run("propagates client errors", func(t *testing.T) {
		client := &fakeVisionClient{err: &domain.UpstreamError{StatusCode: 429, Body: "overloaded"}}
		extractor := NewExtractor(client, nil, ExtractorConfig{})

		_, err := extractor.Extract(context.Background(), []byte("image-bytes"))
		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) {
			t.Fatalf("error = %v, want UpstreamError", err)
		}
		if upstream.StatusCode != 429 {
			t.Errorf("StatusCode = %d, want 429", upstream.StatusCode)
		}
	})

	t.Run("rejects empty image data", func(t *testing.T) {
		client := &fakeVisionClient{reply: validReply}
		extractor := NewExtractor(client, nil, ExtractorConfig{})

		_, err := extractor.Extract(context.Background(), nil)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("second extraction of the same image hits the cache", func(t *testing.T) {
		client := &fakeVisionClient{reply: validReply}
		extractor := NewExtractor(client, cache.NewMemoryCache(), ExtractorConfig{})

		image := []byte("same-image-bytes")
		first, err := extractor.Extract(context.Background(), image)
		if err != nil {
			t.Fatalf("first Extract() error = %v", err)
		}
		second, err := extractor.Extract(context.Background(), image)
		if err != nil {
			t.Fatalf("second Extract() error = %v", err)
		}

		if client.calls != 1 {
			t.Errorf("client calls = %d, want 1", client.calls)
		}
		if first.ProductName != second.ProductName {
			t.Errorf("cached record diverged: %+v vs %+v", first, second)
		}
	})

	t.Run("parse failures are not cached", func(t *testing.T) {
		client := &fakeVisionClient{reply: "no json here"}
		extractor := NewExtractor(client, cache.NewMemoryCache(), ExtractorConfig{})

		image := []byte("bad-image")
		_, err1 := extractor.Extract(context.Background(), image)
		_, err2 := extractor.Extract(context.Background(), image)

		if !errors.Is(err1, domain.ErrNoJSONFound) || !errors.Is(err2, domain.ErrNoJSONFound) {
			t.Fatalf("errors = %v, %v, want ErrNoJSONFound", err1, err2)
		}
		if client.calls != 2 {
			t.Errorf("client calls = %d, want 2", client.calls)
		}
	})
}
