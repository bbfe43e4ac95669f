package incident

import (
	"regexp"
	"strings"
)

// GuardResult is the outcome of scanning caller text before it enters a prompt.
type GuardResult struct {
	// Score is a rough heuristic risk score (0.0 = safe, 1.0 = almost certainly injection).
	Score     float64
	Reasons   []string
	Sanitized string
}

type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

// Transcripts are quoted speech, so instruction-like phrases are scored and
// logged but never cause the text to be dropped.
var guardPatterns = []guardPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "direct_injection:ignore_instructions", 0.9},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?|polic(y|ies))`), "direct_injection:disregard_instructions", 0.9},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "direct_injection:new_role", 0.9},
	{regexp.MustCompile(`(?i)(report|mark|classify|return)\s+(this\s+)?(as\s+)?(no|zero)\s+violations?`), "output_override:suppress_violations", 0.6},
	{regexp.MustCompile(`(?i)set\s+(all\s+)?severit(y|ies)\s+to\s+(low|none)`), "output_override:severity", 0.6},
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "context_manipulation:special_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`), "context_manipulation:role_markers", 0.7},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed|style|svg|form)\b`), "obfuscation:html_injection", 0.6},
}

var (
	specialTokenRe = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerRe   = regexp.MustCompile(`(?i)###\s*(system|instruction|human|assistant|user)\s*:`)
	htmlTagRe      = regexp.MustCompile(`<\s*(script|iframe|object|embed|style|svg|form)\b[^>]*>`)
)

// ScanInput scores text for prompt-injection signals and returns a sanitized copy.
func ScanInput(text string) GuardResult {
	if strings.TrimSpace(text) == "" {
		return GuardResult{Sanitized: text}
	}

	var reasons []string
	maxWeight := 0.0
	for _, p := range guardPatterns {
		if p.re.MatchString(text) {
			reasons = append(reasons, p.reason)
			if p.weight > maxWeight {
				maxWeight = p.weight
			}
		}
	}

	score := maxWeight
	if len(reasons) > 1 {
		score += float64(len(reasons)-1) * 0.1
		if score > 1.0 {
			score = 1.0
		}
	}
	return GuardResult{Score: score, Reasons: reasons, Sanitized: SanitizeForPrompt(text)}
}

// SanitizeForPrompt strips chat-template markers and HTML tags while keeping
// the spoken content intact.
func SanitizeForPrompt(text string) string {
	cleaned := specialTokenRe.ReplaceAllString(text, "")
	cleaned = roleMarkerRe.ReplaceAllString(cleaned, "")
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d{0,3}[-.\s]?\(?\d{3,5}\)?[-.\s]?\d{3}[-.\s]?\d{3,4}`)
)

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// logPreview is the scrubbed, truncated form of caller text allowed in logs.
func logPreview(text string) string {
	text = ScrubPII(strings.TrimSpace(text))
	if r := []rune(text); len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return text
}
