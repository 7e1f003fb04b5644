// Package redact маскирует чувствительные значения (e-mail, токены) перед записью в лог.
package redact

import "strings"

// Email маскирует локальную часть адреса, оставляя домен.
//
//	"alice@example.com" -> "al***@example.com"
//	"ab@ex.com"         -> "***@ex.com"
//	"no-at"             -> "***"
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	local, domain, _ := strings.Cut(s, "@")

	lr := []rune(local)
	if len(lr) <= 2 {
		return "***@" + domain
	}

	return string(lr[:2]) + "***@" + domain
}

// Token скрывает токен целиком; пустой токен помечается отдельно, чтобы это было видно в логах.
func Token(s string) string {
	if s == "" {
		return "[EMPTY_TOKEN]"
	}

	return "[REDACTED_TOKEN]"
}
