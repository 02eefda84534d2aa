// Package safety scans prompts and model replies for prohibited content.
// It is a best-effort guard based on regular expressions, not a security
// boundary, and never calls a model.
package safety

import (
	"regexp"
	"strings"

	"grocer-agent/internal/domain"
)

// Redaction replaces every prohibited match in Sanitize.
const Redaction = "[REDACTED]"

// Disclaimer is prepended by Sanitize when missing.
const Disclaimer = "This is a grocery shopping assistant and recipe helper"

// Safe response kinds.
const (
	KindProhibitedContent = "prohibited_content"
	KindSensitiveTopic    = "sensitive_topic"
	KindOutOfScope        = "out_of_scope"
)

type pattern struct {
	name string
	re   *regexp.Regexp
}

var prohibited = []pattern{
	{"personal_info", regexp.MustCompile(`(?i)\b(?:ssn|social\ssecurity|credit\scard|bank\saccount|password|pin)\b`)},
	{"sensitive_topics", regexp.MustCompile(`(?i)\b(?:politics|religion|race|gender|sexuality|violence|drugs|alcohol)\b`)},
	{"inappropriate_language", regexp.MustCompile(`(?i)\b(?:fuck|shit|damn|hell|bitch|asshole)\b`)},
	{"company_secrets", regexp.MustCompile(`(?i)\b(?:confidential|proprietary|trade\ssecret|internal\suse\sonly)\b`)},
	{"financial_advice", regexp.MustCompile(`(?i)\b(?:invest|stock|market|trading|financial\sadvice)\b`)},
	{"medical_advice", regexp.MustCompile(`(?i)\b(?:prescription|diagnosis|treatment|medical\sadvice|doctor)\b`)},
	{"legal_advice", regexp.MustCompile(`(?i)\b(?:legal\sadvice|lawyer|attorney|court|lawsuit)\b`)},
}

var required = []pattern{
	{"disclaimer", regexp.MustCompile(`(?i)` + regexp.QuoteMeta(Disclaimer))},
	{"scope", regexp.MustCompile(`(?i)focusing on food, recipes, and grocery shopping`)},
	{"limitation", regexp.MustCompile(`(?i)cannot provide (?:medical|legal|financial) advice`)},
}

var categoryTerms = map[domain.Category]pattern{
	domain.CategoryRecipe:       {"Recipe prompt missing key terms", regexp.MustCompile(`(?i)\b(?:recipe|cook|prepare|make|ingredients)\b`)},
	domain.CategoryItemAddition: {"Item addition prompt missing key terms", regexp.MustCompile(`(?i)\b(?:add|put|include|shopping\slist)\b`)},
}

var safeResponses = map[string]string{
	KindProhibitedContent: "I apologize, but I can't assist with that topic. I'm here to help with grocery shopping and recipes.",
	KindSensitiveTopic:    "I'm designed to focus on grocery shopping and recipes. Let's keep our conversation related to food and shopping.",
	KindOutOfScope:        "I'm a grocery shopping assistant and can only help with food-related queries. Would you like help with your shopping list or a recipe instead?",
}

// Result is the outcome of Validate. Only Violations make text unsafe;
// Warnings are quality signals.
type Result struct {
	Safe       bool
	Violations []string
	Warnings   []string
}

// Validate scans text for prohibited content, missing boilerplate and
// category-specific key terms.
func Validate(text string, category domain.Category) Result {
	res := Result{Safe: true}
	for _, p := range prohibited {
		if p.re.MatchString(text) {
			res.Safe = false
			res.Violations = append(res.Violations, "Contains "+p.name)
		}
	}
	for _, p := range required {
		if !p.re.MatchString(text) {
			res.Warnings = append(res.Warnings, "Missing "+p.name)
		}
	}
	if p, ok := categoryTerms[category]; ok && !p.re.MatchString(text) {
		res.Warnings = append(res.Warnings, p.name)
	}
	return res
}

// Sanitize redacts prohibited content and prepends the disclaimer when it
// is not already present.
func Sanitize(text string) string {
	out := text
	for _, p := range prohibited {
		out = p.re.ReplaceAllLiteralString(out, Redaction)
	}
	if !required[0].re.MatchString(out) {
		out = Disclaimer + ". " + out
	}
	return out
}

// SafeResponse returns the canned reply for a violation kind. Unknown kinds
// get the out-of-scope reply.
func SafeResponse(kind string) string {
	if s, ok := safeResponses[kind]; ok {
		return s
	}
	return safeResponses[KindOutOfScope]
}

// Footer is the guideline block appended to every generation prompt.
func Footer() string {
	return strings.Join([]string{
		"Safety Guidelines:",
		"1. Focus only on grocery shopping and recipes",
		"2. Do not provide medical, legal, or financial advice",
		"3. Do not discuss personal or sensitive topics",
		"4. Maintain professional and respectful tone",
		"5. Do not share confidential information",
		"6. Stay within the scope of food and shopping",
	}, "\n")
}
