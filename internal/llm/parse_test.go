package llm

import (
	"testing"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestParseAnswer_Structured(t *testing.T) {
	raw := `{
		"answer": "Sinulla on 14 päivän peruuttamisoikeus.",
		"confidence": {"score": 0.9, "reasoning": "KSL 6 luku 14 § on yksiselitteinen"},
		"sources": [
			{"title": "Kuluttajansuojalaki", "link": "https://finlex.fi/fi/laki/ajantasa/1978/19780038", "section": "6 luku 14 §", "type": "statute", "relevance": 0.95},
			{"title": "", "link": "https://example.com"}
		]
	}`

	answer, err := ParseAnswer(raw)
	require.NoError(t, err)
	assert.False(t, answer.Fallback)
	assert.Equal(t, "Sinulla on 14 päivän peruuttamisoikeus.", answer.Text)
	assert.InDelta(t, 0.9, answer.Confidence.Score, 1e-9)
	require.Len(t, answer.Sources, 1, "untitled sources are dropped")
	assert.Equal(t, models.SourceTypeFinlex, answer.Sources[0].Type)
}

func TestParseAnswer_CodeFence(t *testing.T) {
	answer, err := ParseAnswer("```json\n{\"answer\": \"ok\", \"confidence\": {\"score\": 0.7}}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
	assert.InDelta(t, 0.7, answer.Confidence.Score, 1e-9)
	assert.NotNil(t, answer.Sources)
}

func TestParseAnswer_MissingConfidence(t *testing.T) {
	answer, err := ParseAnswer(`{"answer": "ok"}`)
	require.NoError(t, err)
	assert.False(t, answer.Fallback)
	assert.Equal(t, FallbackConfidence, answer.Confidence.Score)
}

func TestParseAnswer_Fallback(t *testing.T) {
	cases := map[string]string{
		"plain text":   "Kuluttajalla on oikeus palauttaa tuote.",
		"empty answer": `{"answer": "  ", "sources": []}`,
		"truncated":    `{"answer": "Kulutt`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			answer, err := ParseAnswer(raw)
			assert.Error(t, err)
			assert.True(t, answer.Fallback)
			assert.Equal(t, FallbackConfidence, answer.Confidence.Score)
			assert.Equal(t, FallbackReasoning, answer.Confidence.Reasoning)
			assert.NotNil(t, answer.Sources)
			assert.Empty(t, answer.Sources)
		})
	}
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, language.Finnish, NormalizeLanguage("fi"))
	assert.Equal(t, language.English, NormalizeLanguage("en-GB"))
	assert.Equal(t, language.Swedish, NormalizeLanguage("sv"))
	assert.Equal(t, language.Finnish, NormalizeLanguage(""))
	assert.Equal(t, language.Finnish, NormalizeLanguage("not a tag!"))
}

func TestBuildMessages_HistoryAndAttachments(t *testing.T) {
	msgs := buildMessages(GenerateRequest{
		Question:     "Onko tämä ehto kohtuuton?",
		LanguageMode: "fi",
		History:      []Exchange{{Question: "q1", Answer: "a1"}},
		Attachments: []AttachmentSummary{
			{Filename: "sopimus.txt", Kind: models.AttachmentDocument, Size: 12, Text: "Ehto 5: ..."},
			{Filename: "kuva.png", Kind: models.AttachmentImage, Size: 2048},
		},
	})

	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, "Finnish")
	assert.Equal(t, "q1", msgs[1].Content)
	assert.Equal(t, "a1", msgs[2].Content)
	assert.Contains(t, msgs[3].Content, "sopimus.txt")
	assert.Contains(t, msgs[3].Content, "Ehto 5")
	assert.Contains(t, msgs[3].Content, "kuva.png (image, 2048 bytes)")
}
