package domain

import "time"

// Category names a group of interchangeable canned responses
type Category string

const (
	CategoryGreetings Category = "greetings"
	CategoryThanks    Category = "thanks"
	CategoryHelp      Category = "help"
	CategoryFarewell  Category = "farewell"
	CategoryUnknown   Category = "unknown"
)

// GreetingPrefixes are prepended to greeting replies depending on the hour
type GreetingPrefixes struct {
	Morning   string // [05:00, 12:00)
	Afternoon string // [12:00, 17:00)
	Evening   string // [17:00, 21:00)
	Night     string // everything else
}

// For returns the prefix for the local hour of t
func (p GreetingPrefixes) For(t time.Time) string {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 12:
		return p.Morning
	case hour >= 12 && hour < 17:
		return p.Afternoon
	case hour >= 17 && hour < 21:
		return p.Evening
	default:
		return p.Night
	}
}

// ResponseTable is the immutable set of canned reply strings
// It is built once at startup and only read afterwards.
type ResponseTable struct {
	Categories   map[Category][]string
	Prefixes     GreetingPrefixes
	QuestionAck  string
	TimeTemplate string // {time} is replaced with the clock time
	DateTemplate string // {date} is replaced with the day
	Identity     string
}

// Candidates returns the responses of a category
func (t *ResponseTable) Candidates(c Category) []string {
	if t == nil {
		return nil
	}
	return t.Categories[c]
}
