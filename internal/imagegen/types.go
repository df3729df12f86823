package imagegen

import (
	"fmt"
	"strconv"
	"strings"

	"studio/internal/domain"
)

// Quality selects how hard the model is pushed on output fidelity.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	Quality4K       Quality = "4k"
)

// ParseQuality validates a user-supplied quality token. Empty means standard.
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case "", QualityStandard:
		return QualityStandard, nil
	case QualityHigh:
		return QualityHigh, nil
	case Quality4K:
		return Quality4K, nil
	}
	return "", domain.Invalid("quality", fmt.Sprintf("unsupported value %q", s))
}

// AspectMode selects where the output aspect ratio comes from.
type AspectMode string

const (
	// AspectOriginal keeps the primary image's own aspect ratio.
	AspectOriginal AspectMode = "original"
	// AspectReference matches the attached reference image's ratio.
	AspectReference AspectMode = "reference"
	// AspectFixed uses an explicit ratio token such as "16:9".
	AspectFixed AspectMode = "fixed"
)

// AspectSelection is a validated aspect mode plus its ratio token when fixed.
type AspectSelection struct {
	Mode  AspectMode `json:"mode"`
	Ratio string     `json:"ratio,omitempty"`
}

// ParseAspectSelection validates a mode/ratio pair from the API.
func ParseAspectSelection(mode, ratio string) (AspectSelection, error) {
	switch AspectMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", AspectOriginal:
		return AspectSelection{Mode: AspectOriginal}, nil
	case AspectReference:
		return AspectSelection{Mode: AspectReference}, nil
	case AspectFixed:
		if _, err := ParseRatioToken(ratio); err != nil {
			return AspectSelection{}, err
		}
		return AspectSelection{Mode: AspectFixed, Ratio: strings.TrimSpace(ratio)}, nil
	}
	return AspectSelection{}, domain.Invalid("aspect_mode", fmt.Sprintf("unsupported value %q", mode))
}

// ParseRatioToken converts a "W:H" token into its numeric ratio.
func ParseRatioToken(token string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) == 2 {
		a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errA == nil && errB == nil && a > 0 && b > 0 {
			return float64(a) / float64(b), nil
		}
	}
	return 0, domain.Invalid("aspect_ratio", fmt.Sprintf("invalid ratio token %q", token))
}

// EditSpec carries everything the instruction builder needs: the dimensions
// of the (possibly cropped and padded) primary image, whether outpainting is
// active, the raw user instruction, reference presence, and quality mode.
type EditSpec struct {
	Instruction  string
	Width        int
	Height       int
	Outpainting  bool
	HasReference bool
	Quality      Quality
}
