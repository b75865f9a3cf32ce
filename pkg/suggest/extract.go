package suggest

import (
	"regexp"
	"strings"

	enginesql "github.com/queryscope/queryscope-engine/pkg/sql"
)

// Patterns that pull missing table names out of database error messages.
// One pattern per dialect family; the first capture group is the name.
var missingTablePatterns = []*regexp.Regexp{
	// SQL Server: Invalid object name 'Students'.
	regexp.MustCompile(`(?i)invalid object name '?([\w.]+)'?`),
	// MySQL: Table 'db.Students' doesn't exist
	regexp.MustCompile(`(?i)table '([\w.]+)' doesn't exist`),
	// SQLite: no such table: Students
	regexp.MustCompile(`(?i)no such table:?\s+([\w.]+)`),
	// PostgreSQL: relation "students" does not exist
	regexp.MustCompile(`(?i)relation "([\w.]+)" does not exist`),
	// Generic: table "Students" not found / unknown table Students
	regexp.MustCompile(`(?i)table "?([\w.]+)"? not found`),
	regexp.MustCompile(`(?i)unknown table '?([\w.]+)'?`),
}

// ExtractMissingNames returns the candidate missing identifiers for a failed
// query: names cited by the error message itself, plus every table the SQL
// references. The union is de-duplicated case-insensitively, error-cited
// names first since they are the strongest signal.
func ExtractMissingNames(errorText, sqlText string) []string {
	seen := make(map[string]bool)
	var names []string

	add := func(name string) {
		// Database errors often qualify names ("db.Students"); keep the bare
		// table name.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	for _, pattern := range missingTablePatterns {
		for _, m := range pattern.FindAllStringSubmatch(errorText, -1) {
			add(m[1])
		}
	}

	for _, name := range enginesql.ExtractTableIdentifiers(sqlText) {
		add(name)
	}

	return names
}
