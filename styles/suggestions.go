package styles

import (
	"fmt"
	"strings"
)

// Suggestion categories.
const (
	CategoryBiology = "biologia"
	CategoryChem    = "quimica"
	CategoryMath    = "matematicas"
	CategoryGeneral = "general"
)

// categoryKeywords are checked in order; the first category with a keyword
// contained in the topic wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryBiology, []string{"célula", "animal", "planta", "cuerpo", "órgano"}},
	{CategoryChem, []string{"molécula", "elemento", "reacción", "átomo"}},
	{CategoryMath, []string{"número", "ecuación", "geometría", "función"}},
}

var suggestionTemplates = map[string][]string{
	CategoryBiology: {
		"Diagrama detallado de %s con partes etiquetadas",
		"Ciclo de vida de %s con flechas y etapas",
		"Anatomía de %s en estilo científico educativo",
	},
	CategoryChem: {
		"Modelo molecular de %s en 3D con enlaces",
		"Reacción química de %s con ecuación balanceada",
		"Tabla periódica destacando %s",
	},
	CategoryMath: {
		"Representación visual de %s con ejemplos",
		"Gráfica explicativa de %s con ejes etiquetados",
		"Diagrama de %s paso a paso",
	},
	CategoryGeneral: {
		"Infografía educativa sobre %s con iconos",
		"Mapa conceptual de %s con conexiones",
		"Ilustración explicativa de %s",
	},
}

// DetectCategory classifies a topic by Spanish keywords.
func DetectCategory(topic string) string {
	lower := strings.ToLower(topic)
	for _, c := range categoryKeywords {
		for _, w := range c.words {
			if strings.Contains(lower, w) {
				return c.category
			}
		}
	}
	return CategoryGeneral
}

// Suggestions returns three prompt ideas for topic.
func Suggestions(topic string) []string {
	topic = strings.TrimSpace(topic)
	templates := suggestionTemplates[DetectCategory(topic)]

	out := make([]string, len(templates))
	for i, tmpl := range templates {
		out[i] = fmt.Sprintf(tmpl, topic)
	}
	return out
}
