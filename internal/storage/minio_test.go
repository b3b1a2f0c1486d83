package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/hitoshi/genstudio/internal/model"
	"github.com/hitoshi/genstudio/internal/studio"
)

type mockObjectAPI struct {
	exists    bool
	existsErr error
	made      []string
	putErr    error
	puts      map[string][]byte
	putTypes  map[string]string
	objects   []minio.ObjectInfo
	removed   []string
	removeErr error

	// listDoneが非nilなら、ListObjectsはminio-goと同様にバッファなしチャネルへ
	// ctxが終わるまで送り続け、終了時にlistDoneを閉じる
	listDone chan struct{}
}

func newMockObjectAPI() *mockObjectAPI {
	return &mockObjectAPI{puts: make(map[string][]byte), putTypes: make(map[string]string)}
}

func (m *mockObjectAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockObjectAPI) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	m.made = append(m.made, bucket)
	return nil
}

func (m *mockObjectAPI) PutObject(_ context.Context, _, name string, reader io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if m.putErr != nil {
		return minio.UploadInfo{}, m.putErr
	}
	data, _ := io.ReadAll(reader)
	m.puts[name] = data
	m.putTypes[name] = opts.ContentType
	return minio.UploadInfo{Key: name, Size: int64(len(data))}, nil
}

func (m *mockObjectAPI) GetObject(_ context.Context, _, _ string, _ minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not used")
}

func (m *mockObjectAPI) PresignedGetObject(_ context.Context, bucket, name string, expiry time.Duration, _ url.Values) (*url.URL, error) {
	return url.Parse(fmt.Sprintf("http://minio:9000/%s/%s?X-Amz-Expires=%d&X-Amz-Signature=abc", bucket, name, int(expiry.Seconds())))
}

func (m *mockObjectAPI) ListObjects(ctx context.Context, _ string, _ minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	if m.listDone != nil {
		ch := make(chan minio.ObjectInfo)
		go func() {
			defer close(m.listDone)
			defer close(ch)
			for {
				for _, o := range m.objects {
					select {
					case ch <- o:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return ch
	}
	ch := make(chan minio.ObjectInfo, len(m.objects))
	for _, o := range m.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func (m *mockObjectAPI) RemoveObject(_ context.Context, _, name string, _ minio.RemoveObjectOptions) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, name)
	return nil
}

func newTestClient(api objectAPI) *Client {
	c := newClient(api, Config{Endpoint: "minio:9000", Bucket: "genstudio"}, nil)
	c.now = func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) }
	return c
}

var _ studio.ArtifactStore = (*Client)(nil)
var _ studio.LocalSource = (*Client)(nil)

func TestInit_CreatesMissingBucket(t *testing.T) {
	api := newMockObjectAPI()
	c := newTestClient(api)

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(api.made) != 1 || api.made[0] != "genstudio" {
		t.Errorf("made = %v", api.made)
	}

	api.made = nil
	api.exists = true
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(api.made) != 0 {
		t.Error("existing bucket must not be created again")
	}
}

func TestInit_Error(t *testing.T) {
	api := newMockObjectAPI()
	api.existsErr = errors.New("connection refused")

	if err := newTestClient(api).Init(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSave_UploadsAndPresigns(t *testing.T) {
	api := newMockObjectAPI()
	c := newTestClient(api)

	u, err := c.Save(context.Background(), model.MediaImage, []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if len(api.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(api.puts))
	}
	for key, data := range api.puts {
		if !strings.HasPrefix(key, "image/2026/03/09/") || !strings.HasSuffix(key, ".png") {
			t.Errorf("key = %q", key)
		}
		if string(data) != "png" || api.putTypes[key] != "image/png" {
			t.Errorf("stored %q as %q", data, api.putTypes[key])
		}
		if !strings.Contains(u, "/genstudio/"+key) {
			t.Errorf("url %q does not reference key %q", u, key)
		}
	}
	if !strings.Contains(u, "X-Amz-Expires=86400") {
		t.Errorf("url %q should use default expiry", u)
	}
}

func TestSave_UploadError(t *testing.T) {
	api := newMockObjectAPI()
	api.putErr = errors.New("quota exceeded")

	if _, err := newTestClient(api).Save(context.Background(), model.MediaImage, []byte("x"), "image/png"); err == nil {
		t.Fatal("expected error")
	}
}

func TestOwns(t *testing.T) {
	c := newTestClient(newMockObjectAPI())

	tests := []struct {
		url  string
		want bool
	}{
		{"http://minio:9000/genstudio/image/2026/03/09/a.png?X-Amz-Signature=abc", true},
		{"http://MINIO:9000/genstudio/image/a.png", true},
		{"http://minio:9000/other-bucket/a.png", false},
		{"http://minio:9000/genstudio/", false},
		{"http://minio:9000/genstudio/../secret", false},
		{"https://cdn.example.com/genstudio/a.png", false},
		{"data:image/png;base64,AAAA", false},
		{"::not a url", false},
	}
	for _, tt := range tests {
		if got := c.Owns(tt.url); got != tt.want {
			t.Errorf("Owns(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestFetch_ReadsObjectKey(t *testing.T) {
	c := newTestClient(newMockObjectAPI())
	var gotKey string
	c.read = func(_ context.Context, key string) ([]byte, string, error) {
		gotKey = key
		return []byte("bytes"), "image/png", nil
	}

	data, ct, err := c.Fetch(context.Background(), "http://minio:9000/genstudio/image/2026/03/09/a.png?X-Amz-Signature=abc")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotKey != "image/2026/03/09/a.png" {
		t.Errorf("key = %q", gotKey)
	}
	if !bytes.Equal(data, []byte("bytes")) || ct != "image/png" {
		t.Errorf("got (%q, %q)", data, ct)
	}

	if _, _, err := c.Fetch(context.Background(), "https://elsewhere.example.com/a.png"); err == nil {
		t.Error("expected error for foreign url")
	}
}

func TestPruneOlderThan_RemovesOnlyExpiredObjects(t *testing.T) {
	api := newMockObjectAPI()
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	api.objects = []minio.ObjectInfo{
		{Key: "image/2026/03/07/old.png", LastModified: now.Add(-48 * time.Hour)},
		{Key: "image/2026/03/09/new.png", LastModified: now.Add(-time.Hour)},
		{Key: "video/2026/03/08/edge.mp4", LastModified: now.Add(-25 * time.Hour)},
	}
	c := newTestClient(api)

	n, err := c.PruneOlderThan(context.Background(), c.Expiry())
	if err != nil {
		t.Fatalf("PruneOlderThan() error = %v", err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	want := []string{"image/2026/03/07/old.png", "video/2026/03/08/edge.mp4"}
	if strings.Join(api.removed, ",") != strings.Join(want, ",") {
		t.Errorf("removed = %v, want %v", api.removed, want)
	}
}

func TestPruneOlderThan_Errors(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("list error", func(t *testing.T) {
		api := newMockObjectAPI()
		api.objects = []minio.ObjectInfo{{Err: errors.New("access denied")}}
		if _, err := newTestClient(api).PruneOlderThan(context.Background(), time.Hour); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("remove error", func(t *testing.T) {
		api := newMockObjectAPI()
		api.objects = []minio.ObjectInfo{{Key: "image/a.png", LastModified: old}}
		api.removeErr = errors.New("quota")
		n, err := newTestClient(api).PruneOlderThan(context.Background(), time.Hour)
		if err == nil || n != 0 {
			t.Fatalf("got (%d, %v), want error", n, err)
		}
	})
}

func TestPruneOlderThan_StopsListingOnError(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		objects   []minio.ObjectInfo
		removeErr error
	}{
		{"remove error", []minio.ObjectInfo{{Key: "image/a.png", LastModified: old}}, errors.New("quota")},
		{"list error", []minio.ObjectInfo{{Err: errors.New("access denied")}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newMockObjectAPI()
			api.objects = tt.objects
			api.removeErr = tt.removeErr
			api.listDone = make(chan struct{})

			if _, err := newTestClient(api).PruneOlderThan(context.Background(), time.Hour); err == nil {
				t.Fatal("expected error")
			}

			select {
			case <-api.listDone:
			case <-time.After(2 * time.Second):
				t.Fatal("listing goroutine is still running after PruneOlderThan returned")
			}
		})
	}
}

func TestReadLimited(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		max     int64
		wantErr bool
	}{
		{"under limit", "abc", 4, false},
		{"exactly at limit", "abcd", 4, false},
		{"over limit", "abcde", 4, true},
		{"no limit", strings.Repeat("x", 1<<16), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLimited(strings.NewReader(tt.data), tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readLimited() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.data {
				t.Errorf("read %d bytes, want %d", len(got), len(tt.data))
			}
		})
	}
}

func TestNewClient_KeepsMaxObjectSize(t *testing.T) {
	c := newClient(newMockObjectAPI(), Config{Endpoint: "minio:9000", Bucket: "genstudio", MaxObjectSize: 1 << 20}, nil)
	if c.maxSize != 1<<20 {
		t.Errorf("maxSize = %d, want %d", c.maxSize, 1<<20)
	}
}
