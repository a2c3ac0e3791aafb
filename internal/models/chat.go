package models

// ChatMessage is one turn of the intake conversation.
type ChatMessage struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// ChatSession tracks intake progress per anonymous visitor.
type ChatSession struct {
	SessionID string        `json:"session_id"`
	Questions int           `json:"questions"`
	History   []ChatMessage `json:"history"`
}

// ChatResult is the tagged outcome of one classification round:
// either a visa type was decided, or the assistant asks one more
// question. Fallback marks results recovered by keyword matching
// after an unusable model reply.
type ChatResult struct {
	Visa     string `json:"visa,omitempty"`
	Question string `json:"pregunta,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Decided reports whether classification finished.
func (r ChatResult) Decided() bool { return r.Visa != "" }
