package classifier

import (
	"testing"

	"visado/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		userText string
		want     models.ChatResult
	}{
		{
			name: "CleanVisaJSON",
			raw:  `{"visa": "estudio"}`,
			want: models.ChatResult{Visa: "estudio"},
		},
		{
			name: "CleanQuestionJSON",
			raw:  `{"pregunta": "¿Trabajas para una empresa extranjera?"}`,
			want: models.ChatResult{Question: "¿Trabajas para una empresa extranjera?"},
		},
		{
			name: "JSONWrappedInProse",
			raw:  "Claro, aquí tienes: {\"visa\": \"nomada\"} espero que ayude",
			want: models.ChatResult{Visa: "nomada"},
		},
		{
			name: "VisaCaseAndSpace",
			raw:  `{"visa": " TRABAJO "}`,
			want: models.ChatResult{Visa: "trabajo"},
		},
		{
			name:     "UnknownVisaFallsBackToKeywords",
			raw:      `{"visa": "turismo"}`,
			userText: "quiero estudiar un máster",
			want:     models.ChatResult{Visa: "estudio", Fallback: true},
		},
		{
			name:     "GarbageFallsBackToKeywords",
			raw:      "no puedo ayudarte con eso",
			userText: "trabajo remoto para una empresa de EEUU",
			want:     models.ChatResult{Visa: "nomada", Fallback: true},
		},
		{
			name:     "GarbageNoKeywordsAsksAgain",
			raw:      "???",
			userText: "hola",
			want: models.ChatResult{
				Question: "¿Podrías contarme un poco más sobre lo que quieres hacer en España?",
				Fallback: true,
			},
		},
		{
			name:     "MalformedJSONFallsBack",
			raw:      `{"visa": "estudio"`,
			userText: "tengo contrato con una empresa española",
			want:     models.ChatResult{Visa: "trabajo", Fallback: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply(tt.raw, tt.userText)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordVisa(t *testing.T) {
	assert.Equal(t, models.VisaEstudio, KeywordVisa("Quiero ESTUDIAR en Madrid"))
	assert.Equal(t, models.VisaNomada, KeywordVisa("soy freelance y teletrabajo"))
	assert.Equal(t, models.VisaTrabajo, KeywordVisa("me ofrecieron un empleo"))
	assert.Empty(t, KeywordVisa("hola buenas"))
}

func TestFirstJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, firstJSONObject(`x {"a":1} y`))
	assert.Equal(t, `{"a":{"b":2}}`, firstJSONObject(`{"a":{"b":2}} {"c":3}`))
	assert.Equal(t, `{"s":"br}ace"}`, firstJSONObject(`{"s":"br}ace"}`))
	assert.Empty(t, firstJSONObject("no json here"))
	assert.Empty(t, firstJSONObject(`{"unclosed": true`))
}
