package reconcile

import (
	"regexp"
	"strings"

	"github.com/wolfman30/leaddesk/internal/callprovider"
)

const (
	unknownFirstName = "Unknown"
	defaultLastName  = "Caller"
	maxTitleNameLen  = 50
)

// Name is an extracted caller name.
type Name struct {
	First string
	Last  string
}

// NameRule tries to pull a caller name out of a block of text.
type NameRule func(text string) (Name, bool)

// FieldRule tries to pull a single field out of a conversation.
type FieldRule func(c callprovider.Conversation) (string, bool)

const (
	honorific = `(?:(?:Dr|Mr|Ms|Mrs)\.?\s+)`
	nameToken = `[A-Z][a-z]*(?:'[A-Z]?[a-z]+)?`
)

var (
	honorificTwoTokens = regexp.MustCompile(`\b` + honorific + `(` + nameToken + `)\s+(` + nameToken + `)\b`)
	honorificOneToken  = regexp.MustCompile(`\b` + honorific + `(` + nameToken + `)\b`)
	bareTwoTokens      = regexp.MustCompile(`\b(` + nameToken + `)\s+(` + nameToken + `)\b`)
	bareOneToken       = regexp.MustCompile(`\b(` + nameToken + `)\b`)
	titleOnlyLetters   = regexp.MustCompile(`^[A-Za-z' ]+$`)
	titleSingleToken   = regexp.MustCompile(`^` + honorific + `?(` + nameToken + `)$`)
	transcriptName     = regexp.MustCompile(`(?i)\b(?:caller|user|customer)(?:\s+(?:is|named))?\s+(` + nameToken + `(?:\s+` + nameToken + `)?)`)

	phonePattern = regexp.MustCompile(`\d{3}[-.]?\d{3}[-.]?\d{4}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// TitleNameRules run in order against a conversation's summary title.
// Honorific matches win, then a title that is one capitalized token, then a title made
// only of letters is taken as a last name, then bare capitalized tokens.
var TitleNameRules = []NameRule{
	twoTokens(honorificTwoTokens),
	oneToken(honorificOneToken),
	oneToken(titleSingleToken),
	wholeTitle,
	twoTokens(bareTwoTokens),
	oneToken(bareOneToken),
}

// TranscriptNameRules run against the transcript summary when the title yields nothing.
// The whole pattern is case-insensitive, so lowercase names are captured as written.
var TranscriptNameRules = []NameRule{
	transcriptKeyword,
}

// PhoneRules are tried in priority order.
var PhoneRules = []FieldRule{
	field(func(c callprovider.Conversation) string { return c.CallerNumber }),
	field(func(c callprovider.Conversation) string { return c.PhoneNumber }),
	field(func(c callprovider.Conversation) string { return c.FromNumber }),
	field(func(c callprovider.Conversation) string {
		if c.Metadata == nil {
			return ""
		}
		return c.Metadata.CallerNumber
	}),
	transcriptMatch(phonePattern),
}

// EmailRules are tried in priority order.
var EmailRules = []FieldRule{
	field(func(c callprovider.Conversation) string { return c.CallerEmail }),
	field(func(c callprovider.Conversation) string { return c.EmailAddress }),
	field(func(c callprovider.Conversation) string { return c.Email }),
	field(func(c callprovider.Conversation) string {
		if c.Metadata == nil {
			return ""
		}
		return c.Metadata.CallerEmail
	}),
	transcriptMatch(emailPattern),
}

// ExtractName applies the title rules, then the transcript rules, then falls back to Unknown Caller.
func ExtractName(c callprovider.Conversation) Name {
	if title := strings.TrimSpace(c.SummaryTitle); title != "" {
		if n, ok := firstName(TitleNameRules, title); ok {
			return n
		}
	}
	if transcript := strings.TrimSpace(c.TranscriptSummary); transcript != "" {
		if n, ok := firstName(TranscriptNameRules, transcript); ok {
			return n
		}
	}
	return Name{First: unknownFirstName, Last: defaultLastName}
}

// ExtractPhone returns the first phone found, or "" when none.
func ExtractPhone(c callprovider.Conversation) string {
	return firstField(PhoneRules, c)
}

// ExtractEmail returns the first email found, or "" when none.
func ExtractEmail(c callprovider.Conversation) string {
	return firstField(EmailRules, c)
}

func firstName(rules []NameRule, text string) (Name, bool) {
	for _, rule := range rules {
		if n, ok := rule(text); ok {
			return n, true
		}
	}
	return Name{}, false
}

func firstField(rules []FieldRule, c callprovider.Conversation) string {
	for _, rule := range rules {
		if v, ok := rule(c); ok {
			return v
		}
	}
	return ""
}

func twoTokens(re *regexp.Regexp) NameRule {
	return func(text string) (Name, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Name{}, false
		}
		return Name{First: m[1], Last: m[2]}, true
	}
}

func oneToken(re *regexp.Regexp) NameRule {
	return func(text string) (Name, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Name{}, false
		}
		return Name{First: m[1], Last: defaultLastName}, true
	}
}

func wholeTitle(text string) (Name, bool) {
	text = strings.TrimSpace(text)
	if len(text) > maxTitleNameLen || !titleOnlyLetters.MatchString(text) {
		return Name{}, false
	}
	return Name{First: unknownFirstName, Last: text}, true
}

func transcriptKeyword(text string) (Name, bool) {
	m := transcriptName.FindStringSubmatch(text)
	if m == nil {
		return Name{}, false
	}
	parts := strings.Fields(m[1])
	n := Name{First: parts[0], Last: defaultLastName}
	if len(parts) > 1 {
		n.Last = parts[1]
	}
	return n, true
}

func field(get func(callprovider.Conversation) string) FieldRule {
	return func(c callprovider.Conversation) (string, bool) {
		v := strings.TrimSpace(get(c))
		return v, v != ""
	}
}

func transcriptMatch(re *regexp.Regexp) FieldRule {
	return func(c callprovider.Conversation) (string, bool) {
		v := re.FindString(c.TranscriptSummary)
		return v, v != ""
	}
}
