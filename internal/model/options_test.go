package model

import (
	"errors"
	"testing"
)

func TestParseImageStyle_KnownValues(t *testing.T) {
	tests := []struct {
		input string
		want  ImageStyle
		desc  string
	}{
		{"realistic", ImageStyleRealistic, "Photorealistic images"},
		{"artistic", ImageStyleArtistic, "Painterly and artistic style"},
		{"cartoon", ImageStyleCartoon, "Fun cartoon illustrations"},
		{"digital-art", ImageStyleDigitalArt, "Modern digital artwork"},
		{"oil-painting", ImageStyleOilPainting, "Classic oil painting style"},
		{"watercolor", ImageStyleWatercolor, "Soft watercolor effect"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseImageStyle(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseImageStyle(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got.Description() != tt.desc {
				t.Errorf("Description() = %q, want %q", got.Description(), tt.desc)
			}
		})
	}
}

func TestParseImageStyle_UnknownValue_ReturnsErrInvalidOption(t *testing.T) {
	_, err := ParseImageStyle("pixel-art")
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", err)
	}
}

func TestParseImageCount_ClampsToRange(t *testing.T) {
	tests := []struct {
		input string
		want  ImageCount
	}{
		{"1", 1},
		{"2", 2},
		{"3", 3},
		{"4", 4},
		{"0", 1},
		{"-3", 1},
		{"9", 4},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseImageCount(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseImageCount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseImageCount_NonNumeric_ReturnsError(t *testing.T) {
	if _, err := ParseImageCount("two"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", err)
	}
}

func TestParseImageSizeAndQuality(t *testing.T) {
	for _, v := range []string{"1024x1024", "1536x1024", "1024x1536"} {
		if _, err := ParseImageSize(v); err != nil {
			t.Errorf("ParseImageSize(%q) error: %v", v, err)
		}
	}
	if _, err := ParseImageSize("512x512"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseImageSize(512x512) err = %v, want ErrInvalidOption", err)
	}

	for _, v := range []string{"auto", "low", "medium", "high"} {
		if _, err := ParseImageQuality(v); err != nil {
			t.Errorf("ParseImageQuality(%q) error: %v", v, err)
		}
	}
	if _, err := ParseImageQuality("standard"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseImageQuality(standard) err = %v, want ErrInvalidOption", err)
	}
}

func TestParseVideoOptions(t *testing.T) {
	d, err := ParseVideoDuration("10")
	if err != nil {
		t.Fatalf("ParseVideoDuration error: %v", err)
	}
	if d != VideoDurationExtended {
		t.Errorf("duration = %d, want %d", d, VideoDurationExtended)
	}
	if d.String() != "10" {
		t.Errorf("String() = %q, want %q", d.String(), "10")
	}

	if _, err := ParseVideoDuration("7"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseVideoDuration(7) err = %v, want ErrInvalidOption", err)
	}

	if _, err := ParseAspectRatio("4:3"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseAspectRatio(4:3) err = %v, want ErrInvalidOption", err)
	}

	s, err := ParseVideoStyle("vintage")
	if err != nil {
		t.Fatalf("ParseVideoStyle error: %v", err)
	}
	if s.Description() != "Retro and nostalgic feel" {
		t.Errorf("Description() = %q", s.Description())
	}

	if _, err := ParseVideoQuality("low"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("ParseVideoQuality(low) err = %v, want ErrInvalidOption", err)
	}
}

func TestImageOptions_ReturnsCopies(t *testing.T) {
	c := ImageOptions()
	if len(c.Styles) != 6 || len(c.Sizes) != 3 || len(c.Qualities) != 4 || len(c.Counts) != 4 {
		t.Fatalf("unexpected catalog sizes: %+v", c)
	}

	c.Styles[0].Value = "mutated"
	if ImageOptions().Styles[0].Value != "realistic" {
		t.Error("catalog must not be mutable through returned slice")
	}
}

func TestVideoOptions_Sizes(t *testing.T) {
	c := VideoOptions()
	if len(c.Styles) != 6 || len(c.Durations) != 3 || len(c.AspectRatios) != 3 || len(c.Qualities) != 3 {
		t.Fatalf("unexpected catalog sizes: %+v", c)
	}
}

func TestUser_DisplayName_FallsBackToEmail(t *testing.T) {
	u := &User{Email: "a@example.com"}
	if u.DisplayName() != "a@example.com" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
	u.Name = "Alice"
	if u.DisplayName() != "Alice" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
}
