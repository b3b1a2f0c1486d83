// Package storage は生成結果をMinIO（S3互換）に保存し、署名付きURLで公開する。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hitoshi/genstudio/internal/model"
)

// DefaultPresignExpiry は署名付きURLの有効期間。
const DefaultPresignExpiry = 24 * time.Hour

// Config はMinIOの接続設定。
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
	// MaxObjectSize はFetchで読み出す最大バイト数。0以下は無制限。
	MaxObjectSize int64
}

// objectAPI はClientが使うminio.Clientのメソッド。
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, name string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, name string, opts minio.GetObjectOptions) (*minio.Object, error)
	PresignedGetObject(ctx context.Context, bucket, name string, expiry time.Duration, params url.Values) (*url.URL, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error
}

// Client は生成結果の保存先。studio.ArtifactStoreとstudio.LocalSourceを実装する。
type Client struct {
	api     objectAPI
	bucket  string
	expiry  time.Duration
	maxSize int64
	host    string
	logger  *slog.Logger
	now     func() time.Time

	// テストでGetObjectを差し替えるためのフック
	read func(ctx context.Context, key string) ([]byte, string, error)
}

// NewClient はMinIOクライアントを生成する。
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return newClient(mc, cfg, logger), nil
}

func newClient(api objectAPI, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	c := &Client{
		api:     api,
		bucket:  cfg.Bucket,
		expiry:  expiry,
		maxSize: cfg.MaxObjectSize,
		host:    strings.ToLower(cfg.Endpoint),
		logger:  logger,
		now:     time.Now,
	}
	c.read = c.getObject
	return c
}

// Init はバケットが無ければ作成する。
func (c *Client) Init(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	c.logger.Info("bucket created", slog.String("bucket", c.bucket))
	return nil
}

// Save はバイナリを保存し、署名付きURLを返す。
// オブジェクトキーは "{kind}/{yyyy}/{mm}/{dd}/{uuid}{ext}"。
func (c *Client) Save(ctx context.Context, kind model.MediaKind, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := c.objectKey(kind, contentType)

	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", c.bucket, key, err)
	}

	u, err := c.api.PresignedGetObject(ctx, c.bucket, key, c.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", c.bucket, key, err)
	}

	c.logger.Debug("artifact stored",
		slog.String("bucket", c.bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return u.String(), nil
}

func (c *Client) objectKey(kind model.MediaKind, contentType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "video/mp4":
		ext = ".mp4"
	}
	return path.Join(string(kind), c.now().UTC().Format("2006/01/02"), uuid.New().String()+ext)
}

// Owns はURLがこのバケットの署名付きURLかを返す。
func (c *Client) Owns(rawURL string) bool {
	_, ok := c.keyFromURL(rawURL)
	return ok
}

// Fetch は署名付きURLが指すオブジェクトを直接読み出す。
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	key, ok := c.keyFromURL(rawURL)
	if !ok {
		return nil, "", fmt.Errorf("url is not in bucket %s", c.bucket)
	}
	return c.read(ctx, key)
}

func (c *Client) getObject(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := c.api.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get %s/%s: %w", c.bucket, key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat %s/%s: %w", c.bucket, key, err)
	}
	if c.maxSize > 0 && info.Size > c.maxSize {
		return nil, "", fmt.Errorf("object %s/%s exceeds %d bytes", c.bucket, key, c.maxSize)
	}
	data, err := readLimited(obj, c.maxSize)
	if err != nil {
		return nil, "", fmt.Errorf("read %s/%s: %w", c.bucket, key, err)
	}
	return data, info.ContentType, nil
}

// readLimited はrを最大maxSizeバイトまで読む。超えた場合はエラーを返す。
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("object exceeds %d bytes", maxSize)
	}
	return data, nil
}

// keyFromURL はパス形式（/{bucket}/{key}）の署名付きURLからキーを取り出す。
func (c *Client) keyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, c.host) {
		return "", false
	}
	key, ok := strings.CutPrefix(u.Path, "/"+c.bucket+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// PruneOlderThan は最終更新からageを超えたオブジェクトを削除し、削除件数を返す。
// 署名付きURLの期限切れ後は画面から参照されないため、ワーカーが定期的に呼ぶ。
func (c *Client) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	// 途中で返るときもListObjectsの送信側goroutineを終了させる
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cutoff := c.now().Add(-age)
	removed := 0

	for obj := range c.api.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list %s: %w", c.bucket, obj.Err)
		}
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := c.api.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("delete %s/%s: %w", c.bucket, obj.Key, err)
		}
		removed++
	}
	return removed, nil
}

// Expiry は署名付きURLの有効期間を返す。
func (c *Client) Expiry() time.Duration {
	return c.expiry
}

// Healthy はMinIOに到達できるかを返す。
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.api.BucketExists(ctx, c.bucket)
	return err == nil
}
