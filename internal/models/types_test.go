package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 1.0, Clamp01(1.4))
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 0.35, Clamp01(0.35))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
}

func TestSortByRelevance_StableTies(t *testing.T) {
	in := []Source{
		{Title: "a", Relevance: 0.5},
		{Title: "b", Relevance: 0.9},
		{Title: "c", Relevance: 0.5},
		{Title: "d", Relevance: 0.9},
	}

	out := SortByRelevance(in)

	titles := make([]string, 0, len(out))
	for _, s := range out {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, titles)
	assert.Equal(t, "a", in[0].Title, "input must not be reordered")
}

func TestParseSourceType(t *testing.T) {
	assert.Equal(t, SourceTypeFinlex, ParseSourceType("Finlex"))
	assert.Equal(t, SourceTypeFinlex, ParseSourceType("statute"))
	assert.Equal(t, SourceTypeKKV, ParseSourceType(" kkv "))
	assert.Equal(t, SourceTypeOther, ParseSourceType("eur-lex"))
	assert.Equal(t, SourceType(""), ParseSourceType(""))
}

func TestSourceType_UnmarshalJSON(t *testing.T) {
	var src Source
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","type":"blog","relevance":0.2}`), &src))
	assert.Equal(t, SourceTypeOther, src.Type)
}

func TestSourceList_ValueAndScan(t *testing.T) {
	var empty SourceList
	v, err := empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var scanned SourceList
	require.NoError(t, scanned.Scan(nil))
	assert.NotNil(t, scanned)
	assert.Len(t, scanned, 0)

	require.NoError(t, scanned.Scan([]byte(`[{"link":"https://finlex.fi","title":"Kuluttajansuojalaki","type":"finlex","relevance":0.8}]`)))
	require.Len(t, scanned, 1)
	assert.Equal(t, SourceTypeFinlex, scanned[0].Type)

	assert.Error(t, scanned.Scan(42))
}

func TestAttachmentKindFor(t *testing.T) {
	assert.Equal(t, AttachmentImage, AttachmentKindFor("image/png"))
	assert.Equal(t, AttachmentDocument, AttachmentKindFor("application/pdf"))
	assert.Equal(t, AttachmentDocument, AttachmentKindFor(""))
}

func TestDocumentType_Corpus(t *testing.T) {
	assert.Equal(t, SourceTypeFinlex, DocumentStatute.Corpus())
	assert.Equal(t, SourceTypeFinlex, DocumentCaseLaw.Corpus())
	assert.Equal(t, SourceTypeKKV, DocumentGuideline.Corpus())
	assert.Equal(t, []DocumentType{DocumentGuideline}, DocumentTypesFor(SourceTypeKKV))
}

func TestNewQueryResponse_SourcesNeverNull(t *testing.T) {
	q := &Query{ID: 1, SessionID: 2, Question: "q", Answer: "a"}

	data, err := json.Marshal(NewQueryResponse(q))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []interface{}{}, decoded["sources"])
	assert.Equal(t, []interface{}{}, decoded["attachments"])
	assert.NotContains(t, decoded, "confidence")
}

func TestQuery_SetConfidenceClamps(t *testing.T) {
	q := &Query{}
	q.SetConfidence(&Confidence{Score: 3, Reasoning: "sure"})

	c := q.Confidence()
	require.NotNil(t, c)
	assert.Equal(t, 1.0, c.Score)
	assert.Equal(t, "sure", c.Reasoning)

	q.SetConfidence(nil)
	assert.Nil(t, q.Confidence())
}

func TestFeedback_Validate(t *testing.T) {
	assert.Error(t, (&Feedback{QueryID: 1, Rating: 0}).Validate())
	assert.Error(t, (&Feedback{QueryID: 1, Rating: 6}).Validate())
	assert.Error(t, (&Feedback{Rating: 3}).Validate())
	assert.NoError(t, (&Feedback{QueryID: 1, Rating: 3, Helpful: true}).Validate())
}
