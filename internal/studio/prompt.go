package studio

import (
	"fmt"

	"github.com/hitoshi/genstudio/internal/model"
)

// EnhanceImagePrompt はスタイルの説明文をプロンプトの末尾に付与する。
// デフォルトスタイル（realistic）の場合はプロンプトをそのまま返す。
func EnhanceImagePrompt(prompt string, style model.ImageStyle) string {
	if style == model.DefaultImageStyle {
		return prompt
	}
	desc := style.Description()
	if desc == "" {
		desc = string(style)
	}
	return fmt.Sprintf("%s, %s style", prompt, desc)
}

// EnhanceVideoPrompt はスタイル、長さ、縦横比の説明を常にプロンプトの末尾に付与する。
func EnhanceVideoPrompt(prompt string, style model.VideoStyle, duration model.VideoDuration, ratio model.AspectRatio) string {
	desc := style.Description()
	if desc == "" {
		desc = string(style)
	}
	return fmt.Sprintf("%s, %s style, %s seconds duration, %s aspect ratio", prompt, desc, duration, ratio)
}
