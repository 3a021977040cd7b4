// Package intent turns free-text automation requests into weighted keyword
// sets and a category label. Extraction is pure: no I/O, no state, and any
// input (including empty or non-Latin text) yields a usable Intent.
package intent

import (
	"sort"
	"strings"
	"unicode"
)

// Intent is the normalized form of a user's automation request.
type Intent struct {
	Raw      string   `json:"raw"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

// CategoryGeneral is assigned when no lexicon category matches.
const CategoryGeneral = "general"

// stopWords are dropped during tokenization. The list covers the filler of
// typical automation requests ("send me an email when ...").
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "into": {}, "when": {}, "then": {}, "them": {}, "want": {},
	"need": {}, "please": {}, "every": {}, "each": {}, "all": {}, "can": {},
	"you": {}, "your": {}, "our": {}, "will": {}, "would": {}, "should": {},
	"have": {}, "has": {}, "get": {}, "make": {}, "create": {}, "new": {},
	"workflow": {}, "automation": {}, "automate": {},
}

// categoryLexicon maps fixed domain categories to synonym lists. A token
// matches a category on equality or substring in either direction.
var categoryLexicon = map[string][]string{
	"communication": {"email", "mail", "message", "notify", "notification", "digest", "newsletter", "reply", "send"},
	"data_sync":     {"sync", "import", "export", "transfer", "migrate", "backup", "archive", "copy", "etl"},
	"scheduling":    {"schedule", "daily", "weekly", "hourly", "cron", "recurring", "morning", "nightly"},
	"monitoring":    {"monitor", "alert", "uptime", "status", "health", "watch", "check", "downtime"},
	"social":        {"twitter", "linkedin", "instagram", "post", "tweet", "social", "publish"},
	"ecommerce":     {"order", "shop", "store", "invoice", "payment", "customer", "cart", "stripe"},
	"files":         {"file", "document", "upload", "download", "spreadsheet", "csv", "pdf", "folder"},
	"ai":            {"summarize", "classify", "generate", "translate", "sentiment", "extract", "analyze"},
}

// Extract normalizes the text and unions the surviving tokens with category
// lexicon hits. The dominant category (most lexicon hits) becomes the label.
func Extract(text string) Intent {
	tokens := tokenize(text)

	hits := make(map[string]int)
	keywords := make(map[string]struct{})
	for _, tok := range tokens {
		keywords[tok] = struct{}{}
		for category, synonyms := range categoryLexicon {
			for _, syn := range synonyms {
				if tok == syn || strings.Contains(tok, syn) || strings.Contains(syn, tok) {
					hits[category]++
					keywords[syn] = struct{}{}
					break
				}
			}
		}
	}

	category := CategoryGeneral
	best := 0
	// Deterministic winner: iterate categories in sorted order.
	categories := make([]string, 0, len(hits))
	for c := range hits {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		if hits[c] > best {
			best = hits[c]
			category = c
		}
	}

	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Strings(out)

	return Intent{Raw: text, Keywords: out, Category: category}
}

// tokenize lower-cases, strips punctuation, and drops stop-words and tokens
// shorter than three runes.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Categories returns the fixed category labels, sorted.
func Categories() []string {
	out := make([]string, 0, len(categoryLexicon))
	for c := range categoryLexicon {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
