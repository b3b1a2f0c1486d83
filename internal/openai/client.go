// Package openai はOpenAI互換の画像生成API（POST /v1/images/generations）のクライアントを提供する。
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/genstudio/internal/model"
	"github.com/hitoshi/genstudio/internal/studio"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-image-1"

	maxResponseSize = 64 << 20
)

// Config はクライアントの設定。
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client はstudio.ImageGeneratorを実装する。
// b64_jsonで返された画像はArtifactStoreに保存し、そのURLを結果とする。
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	store   studio.ArtifactStore
	logger  *slog.Logger
}

// NewClient はClientを生成する。storeがnilの場合はdata: URLを返す。
func NewClient(cfg Config, store studio.ArtifactStore, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if store == nil {
		store = studio.DataURLStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  cfg.HTTPClient,
		store:   store,
		logger:  logger,
	}
}

type generationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type generationResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
	Error   *apiError   `json:"error"`
}

type imageData struct {
	URL           string `json:"url"`
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// GenerateImage はstudio.ImageGeneratorを実装する。
// いずれか1枚でも取り出せない場合は全体を失敗とする。
func (c *Client) GenerateImage(ctx context.Context, params model.ImageParams) (*model.ImageResponse, error) {
	reqBody := generationRequest{
		Model:   c.model,
		Prompt:  params.Prompt,
		N:       params.N,
		Size:    string(params.Size),
		Quality: string(params.Quality),
	}
	// styleパラメータを受け付けるのはdall-e-3のみ
	if strings.HasPrefix(c.model, "dall-e-3") {
		reqBody.Style = params.Style
		reqBody.Quality = dalleQuality(params.Quality)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out generationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("image api error (status %d): %s", resp.StatusCode, msg)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("image api returned no data")
	}

	artifacts := make([]model.ImageArtifact, 0, len(out.Data))
	for i, d := range out.Data {
		u, err := c.artifactURL(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		artifacts = append(artifacts, model.ImageArtifact{URL: u})
	}

	c.logger.Debug("images generated",
		slog.String("model", c.model),
		slog.Int("count", len(artifacts)),
	)
	return &model.ImageResponse{Data: artifacts}, nil
}

func (c *Client) artifactURL(ctx context.Context, d imageData) (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}
	if d.B64JSON == "" {
		return "", fmt.Errorf("neither url nor b64_json present")
	}
	data, err := base64.StdEncoding.DecodeString(d.B64JSON)
	if err != nil {
		return "", fmt.Errorf("failed to decode b64_json: %w", err)
	}
	u, err := c.store.Save(ctx, model.MediaImage, data, http.DetectContentType(data))
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return u, nil
}

// dalleQuality はフォームの品質をdall-e-3の品質（standard / hd）に変換する。
func dalleQuality(q model.ImageQuality) string {
	if q == model.ImageQualityHigh {
		return "hd"
	}
	return "standard"
}

var _ studio.ImageGenerator = (*Client)(nil)
