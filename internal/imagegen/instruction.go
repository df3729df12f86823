package imagegen

import (
	"fmt"
	"strings"
)

// qualityKeywords triggers the extra quality directive when any of them
// appears in the user's instruction (case-insensitive substring match).
var qualityKeywords = []string{
	"quality",
	"resolution",
	"detail",
	"sharp",
	"crisp",
	"hd",
	"uhd",
	"4k",
	"8k",
}

// BuildInstruction assembles the model instruction from the edit spec. The
// output is deterministic: fixed rule sections in a fixed order, joined with
// blank lines, empty sections omitted.
func BuildInstruction(spec EditSpec) string {
	sections := []string{
		dimensionRule(spec),
		editTask(spec),
		referenceRule(spec),
		qualityRule(spec),
	}
	out := sections[:0]
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n\n")
}

func dimensionRule(spec EditSpec) string {
	head := fmt.Sprintf("Inviolable rule: the output image must be exactly %d x %d pixels.", spec.Width, spec.Height)
	if spec.Outpainting {
		return head + " Fill every transparent region with generated content; no transparency may remain anywhere in the output."
	}
	return head + " Do not crop, resize, or change the aspect ratio of the image."
}

func editTask(spec EditSpec) string {
	text := strings.TrimSpace(spec.Instruction)
	if spec.Outpainting {
		if text == "" {
			return "Extend the image into the transparent padding so the full canvas reads as one seamless picture."
		}
		return "Extend the image into the transparent padding so the full canvas reads as one seamless picture, and apply this edit: " + text
	}
	if text == "" {
		return ""
	}
	return "Apply the following edit to the image: " + text
}

func referenceRule(spec EditSpec) string {
	if !spec.HasReference {
		return ""
	}
	return "A second image is attached purely as a style and content reference. Ignore its dimensions entirely; they must not influence the output size."
}

func qualityRule(spec EditSpec) string {
	var parts []string
	switch spec.Quality {
	case QualityHigh:
		parts = append(parts, "Render the result at high visual quality with clean, natural detail.")
	case Quality4K:
		parts = append(parts, "Render the result at maximum fidelity with crisp, 4K-level detail.")
	}
	if mentionsQuality(spec.Instruction) {
		parts = append(parts, "The instruction emphasizes image quality: prioritize sharpness and detail preservation in every region you generate.")
	}
	return strings.Join(parts, " ")
}

func mentionsQuality(instruction string) bool {
	lowered := strings.ToLower(instruction)
	for _, kw := range qualityKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
