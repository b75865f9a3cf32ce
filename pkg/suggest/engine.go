// Package suggest ranks real schema tables as corrections for identifiers a
// failed query referenced but the database does not have, and renders
// ready-to-run corrected SQL. It is a best-effort diagnostic: callers must
// treat an empty result as a valid, non-exceptional outcome.
package suggest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Defaults for suggestion ranking.
const (
	DefaultThreshold  = 0.6
	DefaultMaxPerName = 3
	maxGlobalQueries  = 3
)

// Suggestion is one ranked correction for a missing name.
type Suggestion struct {
	TableName  string  `json:"table_name"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// Response is the full suggestion set for one failed query.
type Response struct {
	// Suggestions maps each missing name to its ranked corrections.
	Suggestions map[string][]Suggestion `json:"suggestions"`
	// SuggestedQueries are corrected SQL strings, globally ranked, best first.
	SuggestedQueries []string `json:"suggested_queries,omitempty"`
	// Message is a human-readable block listing candidates per missing name.
	Message string `json:"message,omitempty"`
}

// Empty reports whether no correction cleared the threshold.
func (r *Response) Empty() bool {
	return r == nil || len(r.Suggestions) == 0
}

// Engine scores missing identifiers against the tables that actually exist.
type Engine struct {
	threshold  float64
	maxPerName int
	logger     *zap.Logger
}

// NewEngine creates a suggestion engine. Zero-valued options fall back to
// the defaults; a nil logger becomes a no-op.
func NewEngine(threshold float64, maxPerName int, logger *zap.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if maxPerName <= 0 {
		maxPerName = DefaultMaxPerName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{threshold: threshold, maxPerName: maxPerName, logger: logger}
}

// Suggest scores each missing name against every available table and keeps
// the top corrections per name that clear the threshold. Names with no
// candidate above the threshold are omitted entirely.
func (e *Engine) Suggest(missingNames, availableTables []string) *Response {
	resp := &Response{Suggestions: make(map[string][]Suggestion)}

	for _, missing := range missingNames {
		var candidates []Suggestion
		for _, table := range availableTables {
			score, reason := similarityWithReason(missing, table)
			if score < e.threshold {
				continue
			}
			candidates = append(candidates, Suggestion{
				TableName:  table,
				Similarity: score,
				Reason:     reason,
			})
		}

		if len(candidates) == 0 {
			continue
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Similarity > candidates[j].Similarity
		})
		if len(candidates) > e.maxPerName {
			candidates = candidates[:e.maxPerName]
		}
		resp.Suggestions[missing] = candidates
	}

	e.logger.Debug("scored missing identifiers",
		zap.Int("missing", len(missingNames)),
		zap.Int("with_suggestions", len(resp.Suggestions)))

	return resp
}

// Format fills in the corrected-SQL and message fields of a suggestion set.
// Each correction substitutes the missing name as a whole word,
// case-insensitively, in the original SQL. The global SuggestedQueries list
// holds the top corrections across all missing names, best similarity first.
func (e *Engine) Format(resp *Response, originalSQL string) *Response {
	if resp.Empty() {
		return resp
	}

	type rankedQuery struct {
		sql        string
		similarity float64
	}
	var queries []rankedQuery

	var msg strings.Builder
	msg.WriteString("Suggestions:\n")

	// Stable iteration order for the message block.
	missing := make([]string, 0, len(resp.Suggestions))
	for name := range resp.Suggestions {
		missing = append(missing, name)
	}
	sort.Strings(missing)

	for _, name := range missing {
		fmt.Fprintf(&msg, "  %q is not in the schema. Did you mean:\n", name)
		for _, s := range resp.Suggestions[name] {
			fmt.Fprintf(&msg, "    - %s (%d%% match, %s)\n", s.TableName, int(s.Similarity*100), s.Reason)
			if originalSQL != "" {
				if corrected := replaceWholeWord(originalSQL, name, s.TableName); corrected != originalSQL {
					queries = append(queries, rankedQuery{sql: corrected, similarity: s.Similarity})
				}
			}
		}
	}

	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].similarity > queries[j].similarity
	})
	for i, q := range queries {
		if i >= maxGlobalQueries {
			break
		}
		resp.SuggestedQueries = append(resp.SuggestedQueries, q.sql)
	}

	if len(resp.SuggestedQueries) > 0 {
		msg.WriteString("  Corrected queries:\n")
		for _, q := range resp.SuggestedQueries {
			fmt.Fprintf(&msg, "    %s\n", q)
		}
	}

	resp.Message = strings.TrimRight(msg.String(), "\n")
	return resp
}

// ForError is the one-shot entry point used on terminal schema failures:
// extract, score, format. Extracted names that already exist verbatim in the
// schema are not treated as missing.
func (e *Engine) ForError(errorText, sqlText string, availableTables []string) *Response {
	existing := make(map[string]bool, len(availableTables))
	for _, t := range availableTables {
		existing[strings.ToLower(t)] = true
	}

	var missing []string
	for _, name := range ExtractMissingNames(errorText, sqlText) {
		if !existing[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return &Response{Suggestions: map[string][]Suggestion{}}
	}
	return e.Format(e.Suggest(missing, availableTables), sqlText)
}

// replaceWholeWord substitutes old with new in sqlText wherever old appears
// as a whole word, ignoring case.
func replaceWholeWord(sqlText, old, new string) string {
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(old) + `\b`)
	if err != nil {
		return sqlText
	}
	return pattern.ReplaceAllString(sqlText, new)
}
