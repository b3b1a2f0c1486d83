package studio

import (
	"context"

	"github.com/hitoshi/genstudio/internal/model"
)

// ArtifactStore は生成バックエンドがバイナリで返した結果を保存し、表示用のURLを返す。
type ArtifactStore interface {
	Save(ctx context.Context, kind model.MediaKind, data []byte, contentType string) (string, error)
}

// DataURLStore はオブジェクトストレージ未設定時に使うArtifactStore。
// 保存は行わず、バイナリをdata: URLとして返す。
type DataURLStore struct{}

// Save はArtifactStoreを実装する。
func (DataURLStore) Save(_ context.Context, _ model.MediaKind, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	return EncodeDataURL(contentType, data), nil
}

var _ ArtifactStore = DataURLStore{}
