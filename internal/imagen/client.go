// Package imagen はGemini API経由のImagenモデルによる画像生成バックエンドを提供する。
package imagen

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/hitoshi/genstudio/internal/model"
	"github.com/hitoshi/genstudio/internal/studio"
)

// DefaultModel はデフォルトのImagenモデル。
const DefaultModel = "imagen-4.0-generate-001"

// imageModel はgenai.Modelsのうち画像生成に使うメソッド。
type imageModel interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Client はstudio.ImageGeneratorを実装する。
// Imagenは画像をバイト列で返すため、ArtifactStoreに保存したURLを結果とする。
type Client struct {
	models imageModel
	model  string
	store  studio.ArtifactStore
	logger *slog.Logger
}

// Config はクライアントの設定。
type Config struct {
	APIKey string
	Model  string
}

// NewClient はGemini APIのクライアントを生成する。storeがnilの場合はdata: URLを返す。
func NewClient(ctx context.Context, cfg Config, store studio.ArtifactStore, logger *slog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newClient(gc.Models, cfg.Model, store, logger), nil
}

func newClient(models imageModel, modelName string, store studio.ArtifactStore, logger *slog.Logger) *Client {
	if modelName == "" {
		modelName = DefaultModel
	}
	if store == nil {
		store = studio.DataURLStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{models: models, model: modelName, store: store, logger: logger}
}

// GenerateImage はstudio.ImageGeneratorを実装する。
// サイズは縦横比に変換する。品質とstyleタグはImagenに対応する設定が無いため使わない。
func (c *Client) GenerateImage(ctx context.Context, params model.ImageParams) (*model.ImageResponse, error) {
	resp, err := c.models.GenerateImages(ctx, c.model, params.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(params.N),
		AspectRatio:    string(params.Size.AspectRatio()),
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("imagen request failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("imagen returned no images")
	}

	artifacts := make([]model.ImageArtifact, 0, len(resp.GeneratedImages))
	for i, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			reason := ""
			if gi != nil {
				reason = gi.RAIFilteredReason
			}
			return nil, fmt.Errorf("image %d is empty (filtered: %q)", i, reason)
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		u, err := c.store.Save(ctx, model.MediaImage, gi.Image.ImageBytes, mime)
		if err != nil {
			return nil, fmt.Errorf("failed to store image %d: %w", i, err)
		}
		artifacts = append(artifacts, model.ImageArtifact{URL: u})
	}

	c.logger.Debug("images generated",
		slog.String("model", c.model),
		slog.Int("count", len(artifacts)),
	)
	return &model.ImageResponse{Data: artifacts}, nil
}

var _ studio.ImageGenerator = (*Client)(nil)
