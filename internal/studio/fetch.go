package studio

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// URLValidator はダウンロード前にURLの安全性を検証するインターフェース。
// security.SSRFGuardServiceの部分集合として定義する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// LocalSource はアプリケーション自身が保存した生成結果を直接読み出すソース。
// オブジェクトストレージの署名付きURLなど、SSRF検証の対象外にするURLを扱う。
type LocalSource interface {
	Owns(rawURL string) bool
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// HTTPFetcher は生成結果のURLからバイナリを取得するFetcher実装。
// data: URLはローカルでデコードし、LocalSourceが所有するURLはそちらから読み出す。
// それ以外はSSRF防止済みのHTTPクライアントで取得する。
type HTTPFetcher struct {
	client    *http.Client
	validator URLValidator
	maxSize   int64
	locals    []LocalSource
}

// NewHTTPFetcher はHTTPFetcherを生成する。
// validatorがnilの場合は事前検証を行わない（clientのDialer検証のみ）。
func NewHTTPFetcher(client *http.Client, validator URLValidator, maxSize int64, locals ...LocalSource) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		validator: validator,
		maxSize:   maxSize,
		locals:    locals,
	}
}

// Fetch はURLの内容と Content-Type を返す。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}

	for _, src := range f.locals {
		if src.Owns(rawURL) {
			return src.Fetch(ctx, rawURL)
		}
	}

	if f.validator != nil {
		if err := f.validator.ValidateURL(rawURL); err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrURLRejected, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "GenStudio/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, "", fmt.Errorf("response exceeds %d bytes", f.maxSize)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// decodeDataURL は "data:<mime>;base64,<payload>" 形式のURLをデコードする。
func decodeDataURL(rawURL string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data url")
	}

	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data url: %w", err)
		}
		return []byte(text), mime, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("malformed base64 payload: %w", err)
	}
	return data, mime, nil
}

// EncodeDataURL はバイナリを data: URLに変換する。
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
