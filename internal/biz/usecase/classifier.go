package usecase

import (
	"strings"
	"time"

	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
)

const (
	timeLayout = "03:04 PM"
	dateLayout = "02/01/2006"

	timePlaceholder = "{time}"
	datePlaceholder = "{date}"
)

// Trigger terms, checked against the lower-cased message
var (
	greetingTerms = []string{"नमस्ते", "हैलो", "हाय", "hi", "hello"}
	thanksTerms   = []string{"धन्यवाद", "थैंक्स", "शुक्रिया", "thank you"}
	helpTerms     = []string{"मदद", "हेल्प", "सहायता", "help"}
	farewellTerms = []string{"बाय", "अलविदा", "बाय बाय", "bye", "goodbye"}
	questionTerms = []string{"क्या", "कैसे", "क्यों", "कब", "कहाँ"}
	timeTerms     = []string{"समय", "टाइम", "वक्त"}
	dateTerms     = []string{"तारीख", "डेट", "आज"}
	identityTerms = []string{"बॉट", "बोट", "तुम कौन"}
)

// smartRule pairs a trigger term list with a responder.
// respond returns false when it has nothing to say.
type smartRule struct {
	name    string
	terms   []string
	respond func(now time.Time) (string, bool)
}

func (r smartRule) matches(lower string) bool {
	for _, term := range r.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// SmartReplyClassifier maps free text to a canned reply.
// Rules are evaluated in order and the first match wins.
type SmartReplyClassifier struct {
	rules  []smartRule
	random RandomSource
	clock  Clock
}

// NewSmartReplyClassifier creates a classifier over an immutable response table.
// A nil random source or clock falls back to the process defaults.
func NewSmartReplyClassifier(table *domain.ResponseTable, random RandomSource, clock Clock) *SmartReplyClassifier {
	if random == nil {
		random = DefaultRandomSource()
	}
	if clock == nil {
		clock = time.Now
	}
	c := &SmartReplyClassifier{random: random, clock: clock}
	c.rules = c.buildRules(table)
	return c
}

func (c *SmartReplyClassifier) buildRules(table *domain.ResponseTable) []smartRule {
	fromCategory := func(cat domain.Category) func(time.Time) (string, bool) {
		return func(time.Time) (string, bool) {
			return pick(c.random, table.Candidates(cat))
		}
	}
	fixed := func(s string) func(time.Time) (string, bool) {
		return func(time.Time) (string, bool) {
			return s, s != ""
		}
	}

	return []smartRule{
		{name: "greeting", terms: greetingTerms, respond: func(now time.Time) (string, bool) {
			reply, ok := pick(c.random, table.Candidates(domain.CategoryGreetings))
			if !ok {
				return "", false
			}
			return table.Prefixes.For(now) + reply, true
		}},
		{name: "thanks", terms: thanksTerms, respond: fromCategory(domain.CategoryThanks)},
		{name: "help", terms: helpTerms, respond: fromCategory(domain.CategoryHelp)},
		{name: "farewell", terms: farewellTerms, respond: fromCategory(domain.CategoryFarewell)},
		{name: "question", terms: questionTerms, respond: fixed(table.QuestionAck)},
		{name: "time", terms: timeTerms, respond: func(now time.Time) (string, bool) {
			return strings.ReplaceAll(table.TimeTemplate, timePlaceholder, now.Format(timeLayout)), table.TimeTemplate != ""
		}},
		{name: "date", terms: dateTerms, respond: func(now time.Time) (string, bool) {
			return strings.ReplaceAll(table.DateTemplate, datePlaceholder, now.Format(dateLayout)), table.DateTemplate != ""
		}},
		{name: "identity", terms: identityTerms, respond: fixed(table.Identity)},
	}
}

// Classify returns the reply of the first matching rule
func (c *SmartReplyClassifier) Classify(text string) (string, bool) {
	reply, _, ok := c.classify(text)
	return reply, ok
}

// classify also reports the name of the rule that fired
func (c *SmartReplyClassifier) classify(text string) (string, string, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", "", false
	}

	now := c.clock()
	for _, rule := range c.rules {
		if !rule.matches(lower) {
			continue
		}
		if reply, ok := rule.respond(now); ok {
			return reply, rule.name, true
		}
	}
	return "", "", false
}
