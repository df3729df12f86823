package domain

// Preference keys persisted across sessions. Nothing else survives a reload;
// history in particular is memory-only.
const (
	PrefKeyInstruction = "editor.last_instruction"
	PrefKeyAspectRatio = "editor.aspect_ratio"
)

// Preferences is the persisted UI state: the last free-text instruction and
// the last aspect-ratio selection.
type Preferences struct {
	Instruction string `json:"instruction"`
	AspectRatio string `json:"aspect_ratio"`
}
