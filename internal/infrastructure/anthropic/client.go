package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"

	"github.com/kaitori-compare/backend/internal/domain"
)

const DefaultBaseURL = "https://api.anthropic.com"

// extractionPrompt instructs the model to return JSON only, in the
// domain's language. Zero-price offers are excluded here, at the source,
// rather than filtered at render time.
var extractionPrompt = strings.TrimSpace(dedent.Dedent(`
	このスクリーンショットから商品の買取価格情報を抽出してください。

	以下のJSON形式で返してください（他の説明は一切不要、JSONのみ）：

	{
	  "productName": "商品名（完全な名前）",
	  "productCode": "商品コード",
	  "quantity": "数量",
	  "purchasePrice": "購入価格",
	  "shops": [
	    {
	      "name": "ショップ名",
	      "buyPrice": 買取価格（数値、カンマなし）,
	      "profit": 利益額（数値、マイナスも含む）,
	      "timeAgo": "取得時間"
	    }
	  ]
	}

	重要：
	- 買取価格が0の店舗は含めない
	- 数値は必ず数値型で（文字列ではなく）
	- JSONのみを出力（説明文、マークダウン記号などは不要）
`))

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// ClientOpts configures a Client. Zero values fall back to package defaults.
type ClientOpts struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Version   string
}

// Client talks to the Anthropic Messages API
type Client struct {
	httpClient *resty.Client
	model      string
	maxTokens  int
}

// NewClient creates a new Messages API client
func NewClient(opts ClientOpts) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := opts.Version
	if version == "" {
		version = "2023-06-01"
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeaders(map[string]string{
			"Content-Type":      "application/json",
			"x-api-key":         opts.APIKey,
			"anthropic-version": version,
		})

	return &Client{
		httpClient: httpClient,
		model:      opts.Model,
		maxTokens:  maxTokens,
	}
}

// AnalyzeImage sends one image with the extraction prompt as a single
// user turn and returns the reply's text content blocks concatenated in
// order. A non-success status becomes *domain.UpstreamError carrying the
// upstream status and raw body; an empty reply becomes ErrEmptyResponse.
func (c *Client) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	if len(imageData) == 0 {
		return "", domain.ErrInvalidRequest
	}

	body := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{
						Type: "image",
						Source: &imageSource{
							Type:      "base64",
							MediaType: mimeType,
							Data:      base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{
						Type: "text",
						Text: extractionPrompt,
					},
				},
			},
		},
	}

	result := &messagesResponse{}
	resp, err := c.httpClient.NewRequest().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	if resp.IsError() {
		log.Error().
			Int("status", resp.StatusCode()).
			Str("body", string(resp.Body())).
			Msg("completion service error")
		return "", &domain.UpstreamError{
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
		}
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()

	if text == "" {
		return "", domain.ErrEmptyResponse
	}

	log.Info().
		Str("model", c.model).
		Int64("inputTokens", result.Usage.InputTokens).
		Int64("outputTokens", result.Usage.OutputTokens).
		Msg("vision llm call")

	return text, nil
}
