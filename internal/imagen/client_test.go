package imagen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/hitoshi/genstudio/internal/model"
)

type mockModels struct {
	gotModel  string
	gotPrompt string
	gotConfig *genai.GenerateImagesConfig
	resp      *genai.GenerateImagesResponse
	err       error
}

func (m *mockModels) GenerateImages(_ context.Context, modelName, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error) {
	m.gotModel = modelName
	m.gotPrompt = prompt
	m.gotConfig = config
	return m.resp, m.err
}

type mockStore struct {
	count int
	err   error
}

func (m *mockStore) Save(_ context.Context, _ model.MediaKind, _ []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.count++
	return "http://minio:9000/genstudio/image/" + contentType, nil
}

func images(n int) *genai.GenerateImagesResponse {
	resp := &genai.GenerateImagesResponse{}
	for range n {
		resp.GeneratedImages = append(resp.GeneratedImages, &genai.GeneratedImage{
			Image: &genai.Image{ImageBytes: []byte("png"), MIMEType: "image/png"},
		})
	}
	return resp
}

func TestGenerateImage_MapsParams(t *testing.T) {
	models := &mockModels{resp: images(3)}
	store := &mockStore{}
	c := newClient(models, "", store, nil)

	resp, err := c.GenerateImage(context.Background(), model.ImageParams{
		Prompt: "a castle, Classic oil painting style",
		Size:   model.ImageSizePortrait,
		N:      3,
		Style:  model.ImageStyleNatural,
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}

	if models.gotModel != DefaultModel {
		t.Errorf("model = %q", models.gotModel)
	}
	if models.gotPrompt != "a castle, Classic oil painting style" {
		t.Errorf("prompt = %q", models.gotPrompt)
	}
	if models.gotConfig.NumberOfImages != 3 || models.gotConfig.AspectRatio != "3:4" {
		t.Errorf("config = %+v", models.gotConfig)
	}
	if len(resp.Data) != 3 || store.count != 3 {
		t.Errorf("data = %d stored = %d, want 3", len(resp.Data), store.count)
	}
	if !strings.HasSuffix(resp.Data[0].URL, "image/png") {
		t.Errorf("url = %q", resp.Data[0].URL)
	}
}

func TestGenerateImage_WithoutStoreReturnsDataURL(t *testing.T) {
	c := newClient(&mockModels{resp: images(1)}, "imagen-test", nil, nil)

	resp, err := c.GenerateImage(context.Background(), model.ImageParams{Prompt: "x", Size: model.ImageSizeSquare, N: 1})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if !strings.HasPrefix(resp.Data[0].URL, "data:image/png;base64,") {
		t.Errorf("url = %q", resp.Data[0].URL)
	}
}

func TestGenerateImage_Failures(t *testing.T) {
	filtered := images(2)
	filtered.GeneratedImages[1] = &genai.GeneratedImage{RAIFilteredReason: "blocked by safety filter"}

	tests := []struct {
		name   string
		models *mockModels
		store  *mockStore
	}{
		{"api error", &mockModels{err: errors.New("quota exceeded")}, &mockStore{}},
		{"nil response", &mockModels{}, &mockStore{}},
		{"no images", &mockModels{resp: &genai.GenerateImagesResponse{}}, &mockStore{}},
		{"one filtered", &mockModels{resp: filtered}, &mockStore{}},
		{"store error", &mockModels{resp: images(1)}, &mockStore{err: errors.New("minio down")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(tt.models, "", tt.store, nil)
			if _, err := c.GenerateImage(context.Background(), model.ImageParams{Prompt: "x", N: 2}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
