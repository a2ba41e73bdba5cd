// Package stringutils provides helpers for formatting multi-line log and
// status messages.
package stringutils

import "strings"

// IndentString prefixes every line of str, including the first one, with
// indent.
func IndentString(str, indent string) string {
	lines := strings.SplitAfter(str, "\n")
	return strings.Join(append([]string{""}, lines...), indent)
}
