package seeder

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// Section is one numbered provision of a statute, or one heading of a
// guideline page.
type Section struct {
	Number  string
	Title   string
	Content string
}

// ContentProcessor cleans and splits crawled legal text
type ContentProcessor struct {
	htmlTags      *regexp.Regexp
	inlineSpace   *regexp.Regexp
	chapterLine   *regexp.Regexp
	sectionLine   *regexp.Regexp
	statuteNumber *regexp.Regexp
	sentenceEnd   *regexp.Regexp
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{
		htmlTags:      regexp.MustCompile(`<[^>]*>`),
		inlineSpace:   regexp.MustCompile(`[ \t\x{00a0}]+`),
		chapterLine:   regexp.MustCompile(`^(\d+\s?[a-z]?\s+luku)(?:\s+(.*))?$`),
		sectionLine:   regexp.MustCompile(`^(\d+\s?[a-z]?\s*§)(?:\s+(.*))?$`),
		statuteNumber: regexp.MustCompile(`\b\d{1,4}/(?:19|20)\d{2}\b`),
		sentenceEnd:   regexp.MustCompile(`[.!?]+\s+`),
	}
}

// CleanContent strips markup and normalizes whitespace while keeping line
// structure, which SplitSections relies on.
func (cp *ContentProcessor) CleanContent(content string) string {
	content = cp.htmlTags.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var cleaned []string
	emptyLines := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(cp.inlineSpace.ReplaceAllString(line, " "))
		if line == "" {
			emptyLines++
			if emptyLines == 1 {
				cleaned = append(cleaned, "")
			}
			continue
		}
		emptyLines = 0
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// SplitSections cuts statute text at "N §" lines. Chapter headings ("6 luku
// Etämyynti") prefix the numbers of the sections that follow them. Text
// without any section markers comes back as a single section.
func (cp *ContentProcessor) SplitSections(content string) []Section {
	var (
		sections []Section
		current  *Section
		body     strings.Builder
		chapter  string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		if current.Content != "" || current.Title != "" {
			sections = append(sections, *current)
		}
		current = nil
		body.Reset()
	}

	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := cp.chapterLine.FindStringSubmatch(line); m != nil {
			flush()
			chapter = normalizeNumber(m[1])
			continue
		}

		if m := cp.sectionLine.FindStringSubmatch(line); m != nil && (m[2] == "" || isHeading(m[2])) {
			flush()
			number := normalizeNumber(m[1])
			if chapter != "" {
				number = chapter + " " + number
			}
			title := strings.TrimSpace(m[2])
			// Finlex renders the heading on the line after the number.
			if title == "" && i+1 < len(lines) && isHeading(lines[i+1]) {
				i++
				title = strings.TrimSpace(lines[i])
			}
			current = &Section{Number: number, Title: title}
			continue
		}

		if current == nil {
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n")
		}
		body.WriteString(line)
	}
	flush()

	if len(sections) == 0 && strings.TrimSpace(content) != "" {
		return []Section{{Content: strings.TrimSpace(content)}}
	}
	return sections
}

func normalizeNumber(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// isHeading guesses whether a line is a short section heading rather than
// the first sentence of the provision.
func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > 80 {
		return false
	}
	return !strings.HasSuffix(line, ".") && !strings.HasSuffix(line, ":")
}

// SplitIntoChunks splits content into chunks of at most maxRunes runes,
// preferring paragraph and then sentence boundaries.
func (cp *ContentProcessor) SplitIntoChunks(content string, maxRunes int) []string {
	if runeLen(content) <= maxRunes {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if current.Len() > 0 && runeLen(current.String())+runeLen(paragraph)+2 > maxRunes {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return lo.FlatMap(chunks, func(chunk string, _ int) []string {
		if runeLen(chunk) <= maxRunes {
			return []string{chunk}
		}
		return cp.splitBySentences(chunk, maxRunes)
	})
}

func (cp *ContentProcessor) splitBySentences(text string, maxRunes int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range cp.sentences(text) {
		if current.Len() > 0 && runeLen(current.String())+runeLen(sentence)+1 > maxRunes {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// sentences keeps the terminating punctuation on each sentence.
func (cp *ContentProcessor) sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range cp.sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, strings.TrimSpace(text[last:loc[1]]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// ExtractAmendments lists statute numbers such as 1211/2013 cited in the
// text, excluding the document's own identifier.
func (cp *ContentProcessor) ExtractAmendments(content, identifier string) []string {
	found := lo.Uniq(cp.statuteNumber.FindAllString(content, -1))
	return lo.Filter(found, func(number string, _ int) bool {
		return number != identifier
	})
}

var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"kuluttaj", "consumer"},
	{"vuokra", "housing"},
	{"työ", "employment"},
	{"kauppa", "trade"},
	{"perintö", "inheritance"},
	{"avioliitto", "family"},
}

// Category classifies a document by keywords in its title.
func (cp *ContentProcessor) Category(title string) string {
	lower := strings.ToLower(title)
	for _, c := range categoryKeywords {
		if strings.Contains(lower, c.keyword) {
			return c.category
		}
	}
	return "general"
}

// CountWords counts words of two or more letters.
func (cp *ContentProcessor) CountWords(text string) int {
	words := strings.FieldsFunc(text, func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	})
	return lo.CountBy(words, func(word string) bool {
		return runeLen(word) > 1
	})
}

func ContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
