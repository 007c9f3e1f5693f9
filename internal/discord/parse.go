package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var errUsage = errors.New("bad arguments")

// parseInvocation splits "!name arg arg" into a lower-cased name and args.
func parseInvocation(content, prefix string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// parseMention accepts <@id>, <@!id> or a bare snowflake.
func parseMention(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	}
	if s == "" {
		return "", errUsage
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", errUsage
		}
	}
	return s, nil
}

func isMention(s string) bool {
	_, err := parseMention(s)
	return err == nil && strings.HasPrefix(strings.TrimSpace(s), "<@")
}

// parseAmount reads a whole number, tolerating "$" and thousands separators.
// Sign and range checks are left to the engine.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errUsage
	}
	return n, nil
}

func parseDays(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errUsage
	}
	return n, nil
}

// money renders n as "$1,234,567".
func money(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

// formatDuration rounds up to whole seconds and keeps the two largest units.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
