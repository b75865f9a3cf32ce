package sql

import (
	"regexp"
	"strings"
)

// Table references appear after these clauses. This is a simple regex-based
// scan for common statement shapes, not a full SQL parser; it assumes
// reasonably well-formed SQL.
var tableRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bFROM\s+["'\x60\[]?([A-Za-z_][\w$]*)`),
	regexp.MustCompile(`(?i)\bJOIN\s+["'\x60\[]?([A-Za-z_][\w$]*)`),
	regexp.MustCompile(`(?i)\bUPDATE\s+["'\x60\[]?([A-Za-z_][\w$]*)`),
	regexp.MustCompile(`(?i)\bINSERT\s+INTO\s+["'\x60\[]?([A-Za-z_][\w$]*)`),
	regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+["'\x60\[]?([A-Za-z_][\w$]*)`),
}

// ExtractTableIdentifiers returns the table names referenced by a SQL
// statement, de-duplicated in first-seen order. Quoting characters are
// stripped; schema qualifiers are kept out by matching the bare identifier.
//
// Limitations:
// - Does not resolve aliases or subquery scopes
// - CTE names are reported like any other reference
func ExtractTableIdentifiers(sqlText string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, pattern := range tableRefPatterns {
		for _, m := range pattern.FindAllStringSubmatch(sqlText, -1) {
			name := strings.TrimSpace(m[1])
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] || isSQLKeyword(key) {
				continue
			}
			seen[key] = true
			names = append(names, name)
		}
	}

	return names
}

// isSQLKeyword filters out keywords that can follow FROM in derived-table
// constructs (e.g. "DELETE FROM ... WHERE" with odd whitespace).
func isSQLKeyword(word string) bool {
	switch word {
	case "select", "where", "values", "set", "lateral", "only", "unnest":
		return true
	}
	return false
}
