package classifier

import (
	"encoding/json"
	"strings"

	"visado/internal/models"
)

type modelReply struct {
	Visa     string `json:"visa"`
	Pregunta string `json:"pregunta"`
}

// ParseReply extracts the tagged decision from a raw model completion.
// Small models wrap the JSON in prose more often than not, so the
// first balanced object found in the text is tried. When nothing
// usable comes back, classification falls through to keyword matching
// over the user's own words.
func ParseReply(raw, userText string) models.ChatResult {
	if obj := firstJSONObject(raw); obj != "" {
		var reply modelReply
		if err := json.Unmarshal([]byte(obj), &reply); err == nil {
			if visa := normalizeVisa(reply.Visa); visa != "" {
				return models.ChatResult{Visa: visa}
			}
			if q := strings.TrimSpace(reply.Pregunta); q != "" {
				return models.ChatResult{Question: q}
			}
		}
	}

	if visa := KeywordVisa(userText); visa != "" {
		return models.ChatResult{Visa: visa, Fallback: true}
	}

	return models.ChatResult{
		Question: "¿Podrías contarme un poco más sobre lo que quieres hacer en España?",
		Fallback: true,
	}
}

// firstJSONObject returns the first balanced {...} substring, or "".
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

func normalizeVisa(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if models.ValidVisaType(v) {
		return v
	}
	return ""
}

// KeywordVisa classifies from the visitor's wording alone.
func KeywordVisa(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "estudi"), strings.Contains(t, "universidad"), strings.Contains(t, "master"), strings.Contains(t, "máster"):
		return models.VisaEstudio
	case strings.Contains(t, "nómada"), strings.Contains(t, "nomada"), strings.Contains(t, "remot"), strings.Contains(t, "teletrabaj"), strings.Contains(t, "freelance"):
		return models.VisaNomada
	case strings.Contains(t, "trabaj"), strings.Contains(t, "empleo"), strings.Contains(t, "contrato"), strings.Contains(t, "empresa"):
		return models.VisaTrabajo
	}
	return ""
}
