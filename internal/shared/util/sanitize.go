package util

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

const maxReasonLen = 500

// SanitizeReason flattens err into a single line of at most 500 bytes suitable
// for persisting as a failure reason. A nil error yields fallback.
func SanitizeReason(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	msg = Truncate(msg, maxReasonLen)
	if msg == "" {
		return fallback
	}
	return msg
}

// Truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
