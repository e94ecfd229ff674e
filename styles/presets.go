package styles

// QualityPreset trades generation time for detail by fixing the step count.
type QualityPreset struct {
	Label string `json:"label"`
	Steps int    `json:"steps"`
}

var presets = []QualityPreset{
	{Label: "⚡ Rápida", Steps: 20},
	{Label: "⭐ Estándar", Steps: 30},
	{Label: "💎 Alta", Steps: 40},
}

// DefaultPresetLabel is preselected in the form.
const DefaultPresetLabel = "⭐ Estándar"

// Presets returns the quality presets from fastest to most detailed.
func Presets() []QualityPreset {
	out := make([]QualityPreset, len(presets))
	copy(out, presets)
	return out
}

// LookupPreset matches a preset by label, ignoring emoji, case and accents.
func LookupPreset(label string) (QualityPreset, bool) {
	key := normalizeLabel(label)
	if key == "" {
		return QualityPreset{}, false
	}
	for _, p := range presets {
		if p.Label == label || normalizeLabel(p.Label) == key {
			return p, true
		}
	}
	return QualityPreset{}, false
}
