// Package styles holds the static style table used to bias prompts toward a
// visual register, the quality presets and the educational prompt
// suggestions shown in the form.
package styles

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixed fragments appended by Compose.
const (
	QualityBoilerplate  = "high quality, detailed"
	NegativeBoilerplate = "blurry, low quality, distorted text, watermark, signature, deformed, extra limbs, cropped"
)

// ErrEmptyTable is returned when a table would have no entries.
var ErrEmptyTable = errors.New("styles: table has no entries")

// StyleEntry maps a user-facing label to the prompt fragments it adds.
type StyleEntry struct {
	Label          string `yaml:"label" json:"label"`
	PromptSuffix   string `yaml:"prompt_suffix" json:"prompt_suffix"`
	NegativeSuffix string `yaml:"negative_suffix" json:"negative_suffix"`
}

// defaultEntries is the built-in table. The first entry is the fallback
// for unknown labels.
var defaultEntries = []StyleEntry{
	{
		Label:          "📊 Infografía Profesional",
		PromptSuffix:   "professional infographic, clean vector design, labeled diagram, white background, high contrast, modern educational material",
		NegativeSuffix: "photorealistic, cluttered layout, illegible labels",
	},
	{
		Label:          "🎨 Ilustración Didáctica",
		PromptSuffix:   "digital educational illustration, vibrant colors, child-friendly, engaging visual, cartoon style",
		NegativeSuffix: "dark, scary, gore, photorealistic",
	},
	{
		Label:          "🔬 Científico Detallado",
		PromptSuffix:   "scientific illustration, anatomical detail, textbook quality, precise rendering, labeled parts",
		NegativeSuffix: "cartoon, inaccurate anatomy, abstract",
	},
	{
		Label:          "📐 Diagrama Técnico",
		PromptSuffix:   "technical diagram, blueprint style, precise lines, schematic view, engineering drawing",
		NegativeSuffix: "painterly, organic textures, wobbly lines",
	},
	{
		Label:          "✏️ Dibujo Escolar",
		PromptSuffix:   "hand-drawn sketch, simple shapes, colorful, classroom style, easy to understand",
		NegativeSuffix: "photorealistic, complex shading, dark colors",
	},
	{
		Label:          "🌈 Mapa Conceptual",
		PromptSuffix:   "concept map, connected ideas, colorful nodes, mind map style, organized layout",
		NegativeSuffix: "disconnected elements, overlapping text, messy",
	},
}

// Table is an immutable, ordered style table.
type Table struct {
	entries []StyleEntry
	byLabel map[string]int
	byKey   map[string]int
}

// Default returns the built-in style table.
func Default() *Table {
	t, err := NewTable(defaultEntries)
	if err != nil {
		panic(err) // built-in table is known good
	}
	return t
}

// NewTable builds a table from entries, rejecting empty or duplicate labels.
// The entries are copied.
func NewTable(entries []StyleEntry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{
		entries: make([]StyleEntry, len(entries)),
		byLabel: make(map[string]int, len(entries)),
		byKey:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		e.Label = strings.TrimSpace(e.Label)
		if e.Label == "" {
			return nil, fmt.Errorf("styles: entry %d has an empty label", i)
		}
		if _, dup := t.byLabel[e.Label]; dup {
			return nil, fmt.Errorf("styles: duplicate label %q", e.Label)
		}
		t.entries[i] = e
		t.byLabel[e.Label] = i
		if key := normalizeLabel(e.Label); key != "" {
			if _, taken := t.byKey[key]; !taken {
				t.byKey[key] = i
			}
		}
	}
	return t, nil
}

// tableFile is the YAML layout accepted by LoadTable.
type tableFile struct {
	Styles []StyleEntry `yaml:"styles"`
}

// LoadTable reads a YAML style table:
//
//	styles:
//	  - label: "📊 Infografía Profesional"
//	    prompt_suffix: "professional infographic, ..."
//	    negative_suffix: "photorealistic"
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("styles: read %s: %w", path, err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("styles: parse %s: %w", path, err)
	}
	return NewTable(f.Styles)
}

// Entries returns a copy of the entries in display order.
func (t *Table) Entries() []StyleEntry {
	out := make([]StyleEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Labels returns the labels in display order.
func (t *Table) Labels() []string {
	labels := make([]string, len(t.entries))
	for i, e := range t.entries {
		labels[i] = e.Label
	}
	return labels
}

// First returns the fallback entry.
func (t *Table) First() StyleEntry {
	return t.entries[0]
}

// Lookup finds a style by exact label, then by its text with emoji, case
// and accents ignored ("cientifico detallado"), then by a prefix of that
// text ("Científico").
func (t *Table) Lookup(label string) (StyleEntry, bool) {
	label = strings.TrimSpace(label)
	if i, ok := t.byLabel[label]; ok {
		return t.entries[i], true
	}

	key := normalizeLabel(label)
	if key == "" {
		return StyleEntry{}, false
	}
	if i, ok := t.byKey[key]; ok {
		return t.entries[i], true
	}
	for i, e := range t.entries {
		if strings.HasPrefix(normalizeLabel(e.Label), key) {
			return t.entries[i], true
		}
	}
	return StyleEntry{}, false
}

// Resolve is Lookup with the first entry as fallback. fellBack reports
// whether the fallback was used.
func (t *Table) Resolve(label string) (entry StyleEntry, fellBack bool) {
	if e, ok := t.Lookup(label); ok {
		return e, false
	}
	return t.First(), true
}

// Compose builds the final prompt and negative prompt. It is a pure
// concatenation; empty fragments are skipped so no dangling commas appear.
//
//	Compose("Ciclo del agua", infographic)
//	// "Ciclo del agua, professional infographic, ..., high quality, detailed"
func Compose(userPrompt string, style StyleEntry) (prompt, negative string) {
	prompt = joinFragments(userPrompt, style.PromptSuffix, QualityBoilerplate)
	negative = joinFragments(style.NegativeSuffix, NegativeBoilerplate)
	return prompt, negative
}

func joinFragments(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
