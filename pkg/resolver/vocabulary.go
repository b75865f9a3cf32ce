package resolver

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/queryscope/queryscope-engine/pkg/schema"
)

// domainWords are the entity words compound table names are scanned for.
// A table like "ScholarshipApplications" registers "scholarship" and
// "application" (plus their plural forms) as lookup keys.
var domainWords = []string{
	"application", "student", "scholarship", "enrollment", "course",
	"grade", "teacher", "payment", "semester", "subject", "assignment",
	"exam", "department", "user", "customer", "order", "product",
	"invoice", "employee", "account",
}

var (
	camelCaseSplit = regexp.MustCompile(`[A-Z][a-z0-9]*`)
	nonLetterSplit = regexp.MustCompile(`[^a-zA-Z]+`)

	tablePrefixes = []string{"tbl_", "table_", "tb_", "t_"}
	tableSuffixes = []string{"_table", "_tbl", "_tb"}
)

// vocabulary is an immutable snapshot of the learned schema naming. It is
// built wholesale by learn and swapped into the resolver; resolution calls
// read one snapshot for their entire duration, so results are reproducible.
type vocabulary struct {
	// tables maps lower-cased table name to its original casing.
	tables map[string]string
	// rowIsEmpty flags tables with zero rows, keyed by original name.
	rowIsEmpty map[string]bool
	// learnedMappings maps singular/plural forms and compound-word
	// components to candidate tables.
	learnedMappings map[string][]string
	// tablePatterns maps generic word stems to candidate tables.
	tablePatterns map[string][]string
	// compoundTables lists tables whose names are detected compounds.
	compoundTables []string
	// columnsByTable holds column names per table, original casing.
	columnsByTable map[string][]string
}

func emptyVocabulary() *vocabulary {
	return &vocabulary{
		tables:          make(map[string]string),
		rowIsEmpty:      make(map[string]bool),
		learnedMappings: make(map[string][]string),
		tablePatterns:   make(map[string][]string),
		columnsByTable:  make(map[string][]string),
	}
}

// learn derives a fresh vocabulary from a schema description. A nil or
// malformed description yields an empty vocabulary, never an error.
func learn(desc schema.Description) *vocabulary {
	v := emptyVocabulary()
	for name, table := range desc {
		if strings.TrimSpace(name) == "" {
			continue
		}
		v.addTable(name, table)
	}
	return v
}

func (v *vocabulary) addTable(name string, table schema.TableDescription) {
	lower := strings.ToLower(name)
	v.tables[lower] = name
	v.rowIsEmpty[name] = table.RowCount <= 0

	for _, col := range table.Columns {
		if col.Name != "" {
			v.columnsByTable[name] = append(v.columnsByTable[name], col.Name)
		}
	}

	if isCompoundName(name) {
		v.compoundTables = append(v.compoundTables, name)
		for _, component := range splitCompound(name) {
			v.addMapping(component, name)
		}
	}

	// Singular/plural lookup keys for the whole table name.
	if strings.HasSuffix(lower, "s") {
		v.addMapping(lower[:len(lower)-1], name)
	} else {
		v.addMapping(lower+"s", name)
	}
	if singular := strings.ToLower(inflection.Singular(name)); singular != lower {
		v.addMapping(singular, name)
	}
	if plural := strings.ToLower(inflection.Plural(name)); plural != lower {
		v.addMapping(plural, name)
	}

	for _, stem := range genericStems(name) {
		v.tablePatterns[stem] = appendUnique(v.tablePatterns[stem], name)
	}
}

func (v *vocabulary) addMapping(key, table string) {
	key = strings.ToLower(key)
	if key == "" {
		return
	}
	v.learnedMappings[key] = appendUnique(v.learnedMappings[key], table)
}

// hasData reports whether the table had rows at learn time.
func (v *vocabulary) hasData(table string) bool {
	return !v.rowIsEmpty[table]
}

// tableNames returns the known tables in original casing, unordered.
func (v *vocabulary) tableNames() []string {
	names := make([]string, 0, len(v.tables))
	for _, name := range v.tables {
		names = append(names, name)
	}
	return names
}

// isCompoundName detects concatenated multi-word table names: a known domain
// word plus at least 3 extra characters, an internal uppercase letter
// (camel/Pascal case), or sheer length.
func isCompoundName(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range domainWords {
		if strings.Contains(lower, word) && len(lower) >= len(word)+3 {
			return true
		}
	}
	for i := 1; i < len(name); i++ {
		if name[i] >= 'A' && name[i] <= 'Z' {
			return true
		}
	}
	return len(name) > 15
}

// splitCompound breaks a compound table name into lower-cased component
// words: domain-word substring hits (in singular and plural form) plus
// camel-case segments.
func splitCompound(name string) []string {
	lower := strings.ToLower(name)
	var components []string

	for _, word := range domainWords {
		if !strings.Contains(lower, word) {
			continue
		}
		components = append(components, word)
		if plural := inflection.Plural(word); plural != word {
			components = append(components, plural)
		}
	}

	for _, segment := range camelCaseSplit.FindAllString(name, -1) {
		seg := strings.ToLower(segment)
		components = append(components, seg)
		if singular := inflection.Singular(seg); singular != seg {
			components = append(components, singular)
		}
	}

	return dedupe(components)
}

// genericStems strips tbl_-style prefixes and suffixes, splits on
// non-letters, and keeps words longer than 2 characters.
func genericStems(name string) []string {
	lower := strings.ToLower(name)
	for _, p := range tablePrefixes {
		if strings.HasPrefix(lower, p) {
			lower = lower[len(p):]
			break
		}
	}
	for _, s := range tableSuffixes {
		if strings.HasSuffix(lower, s) {
			lower = lower[:len(lower)-len(s)]
			break
		}
	}

	var stems []string
	for _, word := range nonLetterSplit.Split(lower, -1) {
		if len(word) > 2 {
			stems = append(stems, word)
		}
	}
	return dedupe(stems)
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
