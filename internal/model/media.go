package model

// ImageRequest は1回分の画像生成リクエスト。送信ごとに組み立て、永続化しない。
type ImageRequest struct {
	Prompt  string
	Style   ImageStyle
	Size    ImageSize
	Quality ImageQuality
	Count   ImageCount
}

// VideoRequest は1回分の動画生成リクエスト。送信ごとに組み立て、永続化しない。
type VideoRequest struct {
	Prompt      string
	Style       VideoStyle
	Duration    VideoDuration
	AspectRatio AspectRatio
	Quality     VideoQuality
}

// ImageParams は画像生成バックエンドに渡すパラメータ。
type ImageParams struct {
	Prompt  string       `json:"prompt"`
	Size    ImageSize    `json:"size"`
	Quality ImageQuality `json:"quality"`
	N       int          `json:"n"`
	Style   string       `json:"style"`
}

// ImageStyleNatural は画像生成バックエンドに常に渡すstyleタグ。
const ImageStyleNatural = "natural"

// ImageArtifact は生成された1枚の画像への参照。
type ImageArtifact struct {
	URL string `json:"url"`
}

// ImageResponse は画像生成バックエンドの応答。
type ImageResponse struct {
	Data []ImageArtifact `json:"data"`
}

// VideoParams は動画生成バックエンドに渡すパラメータ。
type VideoParams struct {
	Prompt      string        `json:"prompt"`
	Duration    VideoDuration `json:"duration"`
	AspectRatio AspectRatio   `json:"aspect_ratio"`
	Quality     VideoQuality  `json:"quality"`
}

// VideoResponse は動画生成バックエンドの応答。
type VideoResponse struct {
	URL string `json:"url"`
}

// Result は画面に表示する生成結果。IDは同一バッチ内でのみ一意。
type Result struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// NoticeLevel は通知の種別。
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice はユーザーに一時表示する通知（トースト）。
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}
