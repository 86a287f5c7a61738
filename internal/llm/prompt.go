package llm

import (
	"fmt"
	"strings"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const maxAttachmentText = 4000

var (
	supportedLanguages = []language.Tag{language.Finnish, language.English, language.Swedish}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

// NormalizeLanguage maps a client language mode onto a supported language.
// Unknown or malformed modes fall back to Finnish.
func NormalizeLanguage(mode string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(mode))
	if err != nil {
		return language.Finnish
	}
	_, idx, confidence := languageMatcher.Match(tag)
	if confidence == language.No {
		return language.Finnish
	}
	return supportedLanguages[idx]
}

const systemPrompt = `You are a legal assistant specialised in Finnish law and consumer protection.
Answer the user's question using Finnish legislation (Finlex) and the guidelines of the
Finnish Competition and Consumer Authority (KKV). Be precise and cite the statutes and
sections you rely on. If the law is unclear or the question falls outside Finnish law,
say so and lower your confidence.

Reply with a single JSON object and nothing else:
{
  "answer": "the answer in %s",
  "confidence": {"score": number between 0 and 1, "reasoning": "why"},
  "sources": [
    {"title": "statute or guideline name", "link": "https://...", "section": "e.g. 5 luku 2 §",
     "type": "finlex" | "kkv" | "other", "identifier": "e.g. 38/1978", "relevance": number between 0 and 1}
  ]
}`

func buildMessages(req GenerateRequest) []openai.ChatCompletionMessage {
	lang := display.English.Tags().Name(NormalizeLanguage(req.LanguageMode))

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(systemPrompt, lang),
	}}

	for _, ex := range req.History {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.Answer},
		)
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userContent(req),
	})
	return messages
}

func userContent(req GenerateRequest) string {
	var b strings.Builder
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = "Please review the attached files and explain the legal questions they raise."
	}
	b.WriteString(question)

	if len(req.Attachments) == 0 {
		return b.String()
	}

	b.WriteString("\n\nAttached files:")
	for _, a := range req.Attachments {
		fmt.Fprintf(&b, "\n- %s (%s, %d bytes)", a.Filename, a.Kind, a.Size)
		if a.Kind == models.AttachmentDocument && a.Text != "" {
			fmt.Fprintf(&b, "\n  Content:\n%s", utils.TruncateRunes(a.Text, maxAttachmentText))
		}
	}
	return b.String()
}
