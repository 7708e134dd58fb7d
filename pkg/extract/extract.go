package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/haivist/emma/pkg/graph"
)

// Category groups trigger keywords by the kind of structure they produce.
type Category int

const (
	CategoryOther Category = iota
	CategoryRelation
	CategoryEvent
	CategoryEmotion
	CategoryActivity
)

var relationKeywords = map[string]bool{
	"friend": true, "family": true, "mom": true, "dad": true,
	"sister": true, "brother": true, "boyfriend": true,
	"girlfriend": true, "partner": true,
}

var eventKeywords = map[string]bool{
	"meeting": true, "appointment": true, "interview": true, "date": true,
	"deadline": true, "exam": true, "test": true, "presentation": true,
}

var emotionKeywords = map[string]bool{
	"stressed": true, "worried": true, "excited": true, "nervous": true,
	"happy": true, "sad": true, "anxious": true, "tired": true,
	"overwhelmed": true,
}

var activityKeywords = map[string]bool{
	"job": true, "work": true, "school": true,
}

// properNounStopwords are capitalized tokens that are never people.
var properNounStopwords = map[string]bool{
	"I": true, "The": true, "A": true, "An": true,
}

// CategoryOf classifies a trigger keyword.
func CategoryOf(keyword string) Category {
	switch {
	case relationKeywords[keyword]:
		return CategoryRelation
	case eventKeywords[keyword]:
		return CategoryEvent
	case emotionKeywords[keyword]:
		return CategoryEmotion
	case activityKeywords[keyword]:
		return CategoryActivity
	default:
		return CategoryOther
	}
}

// Extractor maps a raw message to graph structure based on a priority-ordered
// trigger keyword list. Only the first matching keyword triggers extraction:
// one memory, one category per message.
type Extractor struct {
	keywords []string
	now      func() time.Time
}

func NewExtractor(keywords []string) *Extractor {
	return &Extractor{keywords: keywords, now: time.Now}
}

// MatchKeyword returns the first trigger keyword contained in the message,
// in priority-list order. The empty string means no trigger: the common
// case, not an error.
func (e *Extractor) MatchKeyword(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// Extract scans the message for a trigger keyword and, when one matches,
// builds the entities and relations to merge into the graph. The bool result
// is false when no keyword matched.
func (e *Extractor) Extract(message string) (graph.MemoryInput, bool) {
	keyword := e.MatchKeyword(message)
	if keyword == "" {
		return graph.MemoryInput{}, false
	}

	in := graph.MemoryInput{Keyword: keyword}

	switch CategoryOf(keyword) {
	case CategoryRelation:
		for _, name := range properNouns(message) {
			in.Entities = append(in.Entities, graph.EntityInput{
				ID:   name,
				Type: graph.TypePerson,
				Attributes: map[string]interface{}{
					"relation": keyword,
				},
			})
		}

	case CategoryEvent:
		// One event per keyword per day; repeats on the same day merge.
		eventID := fmt.Sprintf("event_%s_%s", keyword, e.now().Format("20060102"))
		in.Entities = append(in.Entities, graph.EntityInput{
			ID:   eventID,
			Type: graph.TypeEvent,
			Attributes: map[string]interface{}{
				"description": message,
				"keyword":     keyword,
			},
		})

	case CategoryEmotion:
		in.Entities = append(in.Entities, graph.EntityInput{
			ID:   keyword,
			Type: graph.TypeEmotion,
		})
		in.Relations = append(in.Relations, graph.RelationInput{
			From: graph.UserNode,
			To:   keyword,
			Type: graph.RelFeels,
		})

	case CategoryActivity:
		in.Entities = append(in.Entities, graph.EntityInput{
			ID:   keyword,
			Type: graph.TypeTopic,
		})

	case CategoryOther:
		// Recognized trigger without structured entities: the memory node
		// alone is recorded.
	}

	return in, true
}

// properNouns returns the capitalized tokens of the message, minus
// stopwords, with surrounding punctuation stripped.
func properNouns(message string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, token := range strings.Fields(message) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return unicode.IsPunct(r)
		})
		if token == "" || properNounStopwords[token] {
			continue
		}
		runes := []rune(token)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		names = append(names, token)
	}
	return names
}
