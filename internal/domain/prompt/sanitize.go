package prompt

import (
	"strings"
	"unicode"

	"github.com/Strob0t/ActionForge/internal/domain/interaction"
)

// MaxInputLen caps any single user-supplied text embedded in a prompt.
const MaxInputLen = 10000

var roleMarkers = []string{
	"system:", "assistant:", "user:", "[system]", "[assistant]",
	"<|system|>", "<|assistant|>", "<|im_start|>",
	"### system", "### assistant", "### instruction",
}

// Sanitize strips control characters and role-marker lines from user text
// and enforces MaxInputLen.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.ToLower(line))
		for _, prefix := range roleMarkers {
			if strings.HasPrefix(trimmed, prefix) {
				lines[i] = "[sanitized] " + line
				break
			}
		}
	}
	s = strings.Join(lines, "\n")

	if len(s) > MaxInputLen {
		cut := MaxInputLen
		for cut > 0 && !utf8Start(s[cut]) {
			cut--
		}
		s = s[:cut] + "\n[truncated]"
	}
	return s
}

// utf8Start reports whether b begins a UTF-8 sequence.
func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

func sanitizeInteraction(in interaction.Interaction) interaction.Interaction {
	return interaction.Interaction{
		Source:    in.Source,
		Subject:   Sanitize(in.Subject),
		Body:      Sanitize(in.Body),
		From:      Sanitize(in.From),
		To:        Sanitize(in.To),
		Timestamp: in.Timestamp,
	}
}

var secretMarkers = []string{"password", "secret", "token", "api_key", "apikey", "credential", "private_key"}

// isSecretKey reports whether an extra property name looks like a credential.
func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	for _, m := range secretMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// scrubRelated copies related entities without credential-like properties.
func scrubRelated(r *interaction.RelatedEntities) *interaction.RelatedEntities {
	if r.IsZero() {
		return nil
	}
	return &interaction.RelatedEntities{
		Company: scrubEntity(r.Company),
		Contact: scrubEntity(r.Contact),
		Deal:    scrubEntity(r.Deal),
	}
}

func scrubEntity(e *interaction.EntityRef) *interaction.EntityRef {
	if e == nil {
		return nil
	}
	out := *e
	out.Name = Sanitize(e.Name)
	out.Extra = nil
	for k, v := range e.Extra {
		if isSecretKey(k) {
			continue
		}
		if s, ok := v.(string); ok {
			v = Sanitize(s)
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(e.Extra))
		}
		out.Extra[k] = v
	}
	return &out
}
