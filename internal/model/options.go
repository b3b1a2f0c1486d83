package model

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrInvalidOption は選択肢に存在しない値が指定されたことを示す。
var ErrInvalidOption = errors.New("invalid option")

// Option は画面のセレクトボックスに表示する1件の選択肢。
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// catalog は選択肢の固定リスト。表示順を保持する。
type catalog []Option

func (c catalog) find(value string) (Option, bool) {
	for _, o := range c {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

func (c catalog) parse(field, value string) (string, error) {
	if _, ok := c.find(value); !ok {
		return "", fmt.Errorf("%w: %s=%q", ErrInvalidOption, field, value)
	}
	return value, nil
}

func (c catalog) description(value string) string {
	o, _ := c.find(value)
	return o.Description
}

// --- 画像 ---

// ImageStyle は画像生成のアートスタイル。
type ImageStyle string

const (
	ImageStyleRealistic   ImageStyle = "realistic"
	ImageStyleArtistic    ImageStyle = "artistic"
	ImageStyleCartoon     ImageStyle = "cartoon"
	ImageStyleDigitalArt  ImageStyle = "digital-art"
	ImageStyleOilPainting ImageStyle = "oil-painting"
	ImageStyleWatercolor  ImageStyle = "watercolor"
)

// DefaultImageStyle はそのままのプロンプトで生成するデフォルトスタイル。
const DefaultImageStyle = ImageStyleRealistic

var imageStyleCatalog = catalog{
	{Value: "realistic", Label: "Realistic", Description: "Photorealistic images"},
	{Value: "artistic", Label: "Artistic", Description: "Painterly and artistic style"},
	{Value: "cartoon", Label: "Cartoon", Description: "Fun cartoon illustrations"},
	{Value: "digital-art", Label: "Digital Art", Description: "Modern digital artwork"},
	{Value: "oil-painting", Label: "Oil Painting", Description: "Classic oil painting style"},
	{Value: "watercolor", Label: "Watercolor", Description: "Soft watercolor effect"},
}

// ParseImageStyle は文字列をImageStyleに変換する。
func ParseImageStyle(v string) (ImageStyle, error) {
	s, err := imageStyleCatalog.parse("style", v)
	return ImageStyle(s), err
}

// Description はプロンプトに付与するスタイルの説明文を返す。
func (s ImageStyle) Description() string { return imageStyleCatalog.description(string(s)) }

// ImageSize は生成画像のピクセルサイズ。
type ImageSize string

const (
	ImageSizeSquare    ImageSize = "1024x1024"
	ImageSizeLandscape ImageSize = "1536x1024"
	ImageSizePortrait  ImageSize = "1024x1536"
)

var imageSizeCatalog = catalog{
	{Value: "1024x1024", Label: "Square (1024×1024)", Description: "square"},
	{Value: "1536x1024", Label: "Landscape (1536×1024)", Description: "landscape"},
	{Value: "1024x1536", Label: "Portrait (1024×1536)", Description: "portrait"},
}

// ParseImageSize は文字列をImageSizeに変換する。
func ParseImageSize(v string) (ImageSize, error) {
	s, err := imageSizeCatalog.parse("size", v)
	return ImageSize(s), err
}

// AspectRatio はサイズに対応する縦横比を返す。縦横比ベースのバックエンドで使う。
func (s ImageSize) AspectRatio() AspectRatio {
	switch s {
	case ImageSizeLandscape:
		return "4:3"
	case ImageSizePortrait:
		return "3:4"
	default:
		return AspectRatioSquare
	}
}

// ImageQuality は画像生成の品質。
type ImageQuality string

const (
	ImageQualityAuto   ImageQuality = "auto"
	ImageQualityLow    ImageQuality = "low"
	ImageQualityMedium ImageQuality = "medium"
	ImageQualityHigh   ImageQuality = "high"
)

var imageQualityCatalog = catalog{
	{Value: "auto", Label: "Auto", Description: "Balanced quality and speed"},
	{Value: "low", Label: "Low", Description: "Faster generation"},
	{Value: "medium", Label: "Medium", Description: "Good quality"},
	{Value: "high", Label: "High", Description: "Best quality"},
}

// ParseImageQuality は文字列をImageQualityに変換する。
func ParseImageQuality(v string) (ImageQuality, error) {
	s, err := imageQualityCatalog.parse("quality", v)
	return ImageQuality(s), err
}

// ImageCount は1回の生成で要求する画像枚数（1〜4）。
type ImageCount int

const (
	MinImageCount     ImageCount = 1
	MaxImageCount     ImageCount = 4
	DefaultImageCount ImageCount = 2
)

var imageCountCatalog = catalog{
	{Value: "1", Label: "1 image"},
	{Value: "2", Label: "2 images"},
	{Value: "3", Label: "3 images"},
	{Value: "4", Label: "4 images"},
}

// ParseImageCount は選択肢の数値文字列をImageCountに変換する。
// 数値として解釈できない場合はエラー、範囲外の値は1〜4に丸める。
func ParseImageCount(v string) (ImageCount, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: count=%q", ErrInvalidOption, v)
	}
	return ClampImageCount(n), nil
}

// ClampImageCount はnを1〜4の範囲に丸める。
func ClampImageCount(n int) ImageCount {
	switch {
	case n < int(MinImageCount):
		return MinImageCount
	case n > int(MaxImageCount):
		return MaxImageCount
	default:
		return ImageCount(n)
	}
}

// --- 動画 ---

// VideoStyle は動画生成のスタイル。
type VideoStyle string

const (
	VideoStyleCinematic   VideoStyle = "cinematic"
	VideoStyleDocumentary VideoStyle = "documentary"
	VideoStyleAnimation   VideoStyle = "animation"
	VideoStyleArtistic    VideoStyle = "artistic"
	VideoStyleCommercial  VideoStyle = "commercial"
	VideoStyleVintage     VideoStyle = "vintage"
)

var videoStyleCatalog = catalog{
	{Value: "cinematic", Label: "Cinematic", Description: "Movie-like quality with dramatic lighting"},
	{Value: "documentary", Label: "Documentary", Description: "Realistic documentary style"},
	{Value: "animation", Label: "Animation", Description: "Animated cartoon style"},
	{Value: "artistic", Label: "Artistic", Description: "Creative and artistic visuals"},
	{Value: "commercial", Label: "Commercial", Description: "Professional commercial look"},
	{Value: "vintage", Label: "Vintage", Description: "Retro and nostalgic feel"},
}

// ParseVideoStyle は文字列をVideoStyleに変換する。
func ParseVideoStyle(v string) (VideoStyle, error) {
	s, err := videoStyleCatalog.parse("style", v)
	return VideoStyle(s), err
}

// Description はプロンプトに付与するスタイルの説明文を返す。
func (s VideoStyle) Description() string { return videoStyleCatalog.description(string(s)) }

// VideoDuration は動画の長さ（秒）。
type VideoDuration int

const (
	VideoDurationShort    VideoDuration = 3
	VideoDurationStandard VideoDuration = 5
	VideoDurationExtended VideoDuration = 10
)

var videoDurationCatalog = catalog{
	{Value: "3", Label: "3 seconds", Description: "Quick clip"},
	{Value: "5", Label: "5 seconds", Description: "Standard length"},
	{Value: "10", Label: "10 seconds", Description: "Extended clip"},
}

// ParseVideoDuration は秒数の文字列をVideoDurationに変換する。
func ParseVideoDuration(v string) (VideoDuration, error) {
	s, err := videoDurationCatalog.parse("duration", v)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(s)
	return VideoDuration(n), nil
}

// String は秒数の文字列表現を返す。
func (d VideoDuration) String() string { return strconv.Itoa(int(d)) }

// AspectRatio は動画の縦横比。
type AspectRatio string

const (
	AspectRatioLandscape AspectRatio = "16:9"
	AspectRatioPortrait  AspectRatio = "9:16"
	AspectRatioSquare    AspectRatio = "1:1"
)

var aspectRatioCatalog = catalog{
	{Value: "16:9", Label: "Landscape (16:9)", Description: "Widescreen format"},
	{Value: "9:16", Label: "Portrait (9:16)", Description: "Mobile/vertical format"},
	{Value: "1:1", Label: "Square (1:1)", Description: "Social media format"},
}

// ParseAspectRatio は文字列をAspectRatioに変換する。
func ParseAspectRatio(v string) (AspectRatio, error) {
	s, err := aspectRatioCatalog.parse("aspect_ratio", v)
	return AspectRatio(s), err
}

// VideoQuality は動画生成の品質。
type VideoQuality string

const (
	VideoQualityAuto     VideoQuality = "auto"
	VideoQualityStandard VideoQuality = "standard"
	VideoQualityHigh     VideoQuality = "high"
)

var videoQualityCatalog = catalog{
	{Value: "auto", Label: "Auto", Description: "Balanced quality and speed"},
	{Value: "standard", Label: "Standard", Description: "Good quality"},
	{Value: "high", Label: "High", Description: "Best quality"},
}

// ParseVideoQuality は文字列をVideoQualityに変換する。
func ParseVideoQuality(v string) (VideoQuality, error) {
	s, err := videoQualityCatalog.parse("quality", v)
	return VideoQuality(s), err
}

// --- 選択肢カタログ ---

// ImageOptionCatalog は画像生成フォームの全選択肢。
type ImageOptionCatalog struct {
	Styles    []Option `json:"styles"`
	Sizes     []Option `json:"sizes"`
	Qualities []Option `json:"qualities"`
	Counts    []Option `json:"counts"`
}

// ImageOptions は画像生成フォームの選択肢を表示順で返す。
func ImageOptions() ImageOptionCatalog {
	return ImageOptionCatalog{
		Styles:    slices.Clone(imageStyleCatalog),
		Sizes:     slices.Clone(imageSizeCatalog),
		Qualities: slices.Clone(imageQualityCatalog),
		Counts:    slices.Clone(imageCountCatalog),
	}
}

// VideoOptionCatalog は動画生成フォームの全選択肢。
type VideoOptionCatalog struct {
	Styles       []Option `json:"styles"`
	Durations    []Option `json:"durations"`
	AspectRatios []Option `json:"aspect_ratios"`
	Qualities    []Option `json:"qualities"`
}

// VideoOptions は動画生成フォームの選択肢を表示順で返す。
func VideoOptions() VideoOptionCatalog {
	return VideoOptionCatalog{
		Styles:       slices.Clone(videoStyleCatalog),
		Durations:    slices.Clone(videoDurationCatalog),
		AspectRatios: slices.Clone(aspectRatioCatalog),
		Qualities:    slices.Clone(videoQualityCatalog),
	}
}
