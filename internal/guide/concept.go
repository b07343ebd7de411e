package guide

import (
	"strings"
	"unicode"
)

// stopWords are dropped when tokenizing a question into topic tokens.
// They cover articles, filler, and assessment words that carry no topical
// signal ("quiz", "test", "study", "guide", ...).
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"this": true, "that": true, "from": true, "have": true, "has": true,
	"will": true, "can": true, "could": true, "should": true, "would": true,
	"what": true, "when": true, "where": true, "which": true, "how": true,
	"help": true, "need": true, "want": true, "please": true, "get": true,
	"quiz": true, "test": true, "exam": true, "study": true, "guide": true,
	"studying": true, "prepare": true, "preparing": true, "upcoming": true,
	"next": true, "week": true, "tomorrow": true, "today": true,
	"chapter": true, "unit": true, "class": true, "course": true,
	"homework": true, "assignment": true, "due": true, "review": true,
	"you": true, "are": true, "there": true, "going": true, "know": true,
	"understand": true, "make": true, "take": true, "taking": true,
	// file extensions seen in uploaded material names
	"pdf": true, "doc": true, "docx": true, "png": true, "jpg": true,
	"jpeg": true,
}

// reviewTokens are generic study-intent tokens used alongside topic tokens
// when filtering secondary evidence (module items, pages, files,
// announcements).
var reviewTokens = []string{
	"review", "study", "exam", "test", "quiz", "practice",
	"final", "midterm", "prep", "summary",
}

// junkWords is the reserved stop-word set a topic label may never equal:
// pure interrogatives and instructional verbs that sometimes leak out of
// prompt parsing or model output.
var junkWords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "why": true,
	"how": true, "should": true, "make": true, "create": true, "explain": true,
	"help": true, "study": true, "review": true, "learn": true,
	"quiz": true, "test": true, "exam": true, "guide": true,
}

// TopicTokens tokenizes free text into lowercase alphanumeric tokens longer
// than two characters, minus the stop-word set.
func TopicTokens(text string) []string {
	var tokens []string
	seen := map[string]bool{}
	for _, raw := range splitAlnum(text) {
		tok := strings.ToLower(raw)
		if len(tok) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

func splitAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// IsJunkLabel reports whether a candidate topic label is empty or equals a
// reserved junk word (case-insensitive).
func IsJunkLabel(label string) bool {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return true
	}
	return junkWords[strings.ToLower(trimmed)]
}

// InferConcept derives a concept hint from a title: the stop-word-filtered
// first four non-trivial words, joined. Used for upload hints, weak-signal
// concepts, and focus recommendations alike.
func InferConcept(title string) string {
	var words []string
	for _, w := range splitAlnum(title) {
		lower := strings.ToLower(w)
		if len(lower) <= 2 || stopWords[lower] {
			continue
		}
		words = append(words, w)
		if len(words) == 4 {
			break
		}
	}
	return strings.Join(words, " ")
}

// tokenMatchCount counts how many of the given tokens occur in text
// (case-insensitive substring match).
func tokenMatchCount(text string, tokens []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			count++
		}
	}
	return count
}

// matchesAny reports whether text contains at least one of the tokens.
func matchesAny(text string, tokens []string) bool {
	return tokenMatchCount(text, tokens) > 0
}

// promptConceptTable maps question keywords to canonical concept labels.
var promptConceptTable = []struct {
	keyword string
	concept string
}{
	{"vertex", "Vertex and axis of symmetry"},
	{"parabola", "Graphing parabolas"},
	{"factoring", "Factoring quadratics"},
	{"discriminant", "Quadratic formula and discriminant"},
	{"completing", "Completing the square"},
	{"slope", "Slope and linear equations"},
	{"derivative", "Derivatives and rates of change"},
	{"integral", "Integrals and area under curves"},
	{"limit", "Limits and continuity"},
	{"photosynthesis", "Photosynthesis and cellular respiration"},
	{"mitosis", "Mitosis and the cell cycle"},
	{"stoichiometry", "Stoichiometry and mole ratios"},
	{"triangle", "Triangle congruence and similarity"},
	{"sine", "Trigonometric ratios"},
	{"cosine", "Trigonometric ratios"},
}

// PromptConcepts extracts concept labels from a free-text question via the
// keyword-to-concept table.
func PromptConcepts(question string) []string {
	lower := strings.ToLower(question)
	var concepts []string
	seen := map[string]bool{}
	for _, entry := range promptConceptTable {
		if strings.Contains(lower, entry.keyword) && !seen[entry.concept] {
			seen[entry.concept] = true
			concepts = append(concepts, entry.concept)
		}
	}
	return concepts
}

// curriculumTable maps course-name keywords to typical curriculum topics.
var curriculumTable = []struct {
	keywords []string
	topics   []string
}{
	{
		keywords: []string{"algebra 2", "algebra ii", "algebra"},
		topics: []string{
			"Quadratic functions",
			"Graphing parabolas",
			"Factoring quadratics",
			"Completing the square",
			"Quadratic formula and discriminant",
		},
	},
	{
		keywords: []string{"geometry"},
		topics: []string{
			"Triangle congruence and similarity",
			"Angle relationships",
			"Area and perimeter",
			"Circle theorems",
		},
	},
	{
		keywords: []string{"precalculus", "pre-calculus", "trigonometry"},
		topics: []string{
			"Trigonometric ratios",
			"Unit circle",
			"Graphing sine and cosine",
			"Trigonometric identities",
		},
	},
	{
		keywords: []string{"calculus"},
		topics: []string{
			"Limits and continuity",
			"Derivatives and rates of change",
			"Chain rule",
			"Integrals and area under curves",
		},
	},
	{
		keywords: []string{"biology"},
		topics: []string{
			"Cell structure and function",
			"Photosynthesis and cellular respiration",
			"Mitosis and the cell cycle",
			"DNA and protein synthesis",
		},
	},
	{
		keywords: []string{"chemistry"},
		topics: []string{
			"Atomic structure",
			"Chemical bonding",
			"Stoichiometry and mole ratios",
			"Balancing equations",
		},
	},
	{
		keywords: []string{"physics"},
		topics: []string{
			"Kinematics",
			"Newton's laws of motion",
			"Energy and work",
			"Momentum and collisions",
		},
	},
	{
		keywords: []string{"history"},
		topics: []string{
			"Key events and timeline",
			"Causes and consequences",
			"Primary source analysis",
		},
	},
}

// CurriculumTopics infers typical topics from the course name. More
// specific keys win: "precalculus" matches before "calculus" by table
// order, and "algebra 2" before plain "algebra".
func CurriculumTopics(courseName string) []string {
	lower := strings.ToLower(courseName)
	for _, entry := range curriculumTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				out := make([]string, len(entry.topics))
				copy(out, entry.topics)
				return out
			}
		}
	}
	return nil
}
