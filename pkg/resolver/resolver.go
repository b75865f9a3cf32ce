// Package resolver maps free-text identifiers to real schema names despite
// typos, singular/plural variation and compound naming. A Resolver learns
// the vocabulary of a live database from a schema description and resolves
// tokens against that snapshot; learning fully replaces the vocabulary, so
// resolution is a pure function of (token, snapshot).
package resolver

import (
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/fuzzy"
	"github.com/queryscope/queryscope-engine/pkg/phonetics"
	"github.com/queryscope/queryscope-engine/pkg/schema"
)

// DefaultThreshold is the minimum score a candidate needs to be returned.
const DefaultThreshold = 60

// Score ladder for the resolution rules. A token can hit several rules; the
// highest applicable score wins.
const (
	scoreExact     = 100
	scoreLearned   = 95
	scorePattern   = 90
	scoreCompound  = 85
	scoreSubstring = 85
	scorePhonetic  = 80
	scoreBothStems = 80
	dataBoost      = 5
	dataBoostFloor = 80
	emptyPenalty   = 5
)

// Match is the outcome of resolving a token to a table.
type Match struct {
	Name    string // real table name, original casing
	Score   int    // 0..100 confidence after the has-data adjustment
	HasData bool   // table had rows at learn time
}

// ColumnMatch is the outcome of resolving a token to a column.
type ColumnMatch struct {
	Table  string
	Column string
	Score  int
}

// RelationshipMatch is the outcome of resolving an entity pair to a
// junction table.
type RelationshipMatch struct {
	Table   string
	Score   int
	HasData bool
}

// Resolver owns exactly one vocabulary snapshot at a time. Learn replaces
// the snapshot under a write lock; resolution calls grab the current
// snapshot and work on it unblocked, so a concurrent refresh never tears a
// resolution in progress.
type Resolver struct {
	mu        sync.RWMutex
	vocab     *vocabulary
	threshold int
	logger    *zap.Logger
}

// New creates a Resolver with an empty vocabulary. A threshold <= 0 falls
// back to DefaultThreshold; a nil logger becomes a no-op.
func New(threshold int, logger *zap.Logger) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		vocab:     emptyVocabulary(),
		threshold: threshold,
		logger:    logger,
	}
}

// Learn rebuilds the vocabulary from a schema description, replacing any
// previously learned state. It is idempotent and never fails: a nil or
// malformed description degrades to an empty vocabulary.
func (r *Resolver) Learn(desc schema.Description) {
	v := learn(desc)

	r.mu.Lock()
	r.vocab = v
	r.mu.Unlock()

	r.logger.Debug("learned schema vocabulary",
		zap.Int("tables", len(v.tables)),
		zap.Int("compound_tables", len(v.compoundTables)),
		zap.Int("learned_mappings", len(v.learnedMappings)))
}

// TableNames returns the tables known to the current snapshot.
func (r *Resolver) TableNames() []string {
	return r.snapshot().tableNames()
}

func (r *Resolver) snapshot() *vocabulary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vocab
}

// Resolve maps a free-text token to the best-matching table, or nil when no
// candidate clears the threshold. Tables with data beat empty tables, higher
// scores win next, and among ties the shorter name wins. The returned score
// is adjusted: +5 for confident matches backed by data (capped at 100), -5
// for matches on empty tables (floored at the threshold).
func (r *Resolver) Resolve(token string) *Match {
	v := r.snapshot()
	tok := strings.ToLower(strings.TrimSpace(token))
	if tok == "" || len(v.tables) == 0 {
		return nil
	}

	scores := make(map[string]int)
	record := func(table string, score int) {
		if score > scores[table] {
			scores[table] = score
		}
	}

	if orig, ok := v.tables[tok]; ok {
		record(orig, scoreExact)
	}
	for _, table := range v.learnedMappings[tok] {
		record(table, scoreLearned)
	}
	for _, table := range v.tablePatterns[tok] {
		// Guard against stem collisions: the stem must literally appear in
		// the table name it points at.
		if strings.Contains(strings.ToLower(table), tok) {
			record(table, scorePattern)
		}
	}
	for _, table := range v.compoundTables {
		if strings.Contains(strings.ToLower(table), tok) {
			record(table, scoreCompound)
		}
	}

	tokCode := phonetics.Encode(tok)
	for lower, orig := range v.tables {
		fz := fuzzy.BestRatio(tok, lower)
		if strings.Contains(lower, tok) || strings.Contains(tok, lower) {
			fz = maxInt(fz, scoreSubstring)
		}
		if tokCode != "" && tokCode == phonetics.Encode(lower) {
			fz = maxInt(fz, scorePhonetic)
		}
		if fz >= r.threshold {
			record(orig, fz)
		}
	}

	candidates := make([]Match, 0, len(scores))
	for table, score := range scores {
		if score < r.threshold {
			continue
		}
		candidates = append(candidates, Match{
			Name:    table,
			Score:   score,
			HasData: v.hasData(table),
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	sortCandidates(candidates)
	best := candidates[0]
	best.Score = r.adjustScore(best)

	r.logger.Debug("resolved token",
		zap.String("token", token),
		zap.String("table", best.Name),
		zap.Int("score", best.Score),
		zap.Bool("has_data", best.HasData))

	return &best
}

// ResolveColumn maps a token to a column, optionally restricted to one
// table (pass "" to search all tables). Columns have no row-count concept,
// so there is no has-data tie-break; exact matches short-circuit at 100.
func (r *Resolver) ResolveColumn(token, table string) *ColumnMatch {
	v := r.snapshot()
	tok := strings.ToLower(strings.TrimSpace(token))
	if tok == "" {
		return nil
	}

	var best *ColumnMatch
	consider := func(tbl, col string) bool {
		lower := strings.ToLower(col)
		if lower == tok {
			best = &ColumnMatch{Table: tbl, Column: col, Score: scoreExact}
			return true
		}
		fz := fuzzy.BestRatio(tok, lower)
		if strings.Contains(lower, tok) || strings.Contains(tok, lower) {
			fz = maxInt(fz, scoreSubstring)
		}
		if code := phonetics.Encode(tok); code != "" && code == phonetics.Encode(lower) {
			fz = maxInt(fz, scorePhonetic)
		}
		if fz < DefaultThreshold {
			return false
		}
		if best == nil || fz > best.Score ||
			(fz == best.Score && len(col) < len(best.Column)) {
			best = &ColumnMatch{Table: tbl, Column: col, Score: fz}
		}
		return false
	}

	if table != "" {
		for _, col := range v.columnsByTable[table] {
			if consider(table, col) {
				return best
			}
		}
		return best
	}

	for tbl, cols := range v.columnsByTable {
		for _, col := range cols {
			if consider(tbl, col) {
				return best
			}
		}
	}
	return best
}

// junctionSuffixes extend generated junction-table candidates: entity pair
// names are commonly decorated with one of these.
var junctionSuffixes = []string{"assignment", "assignments", "mapping", "mappings", "relationship", "relationships", "_map", "_rel"}

// ResolveRelationship finds the junction table linking two entities. It
// generates name candidates from singular and plural forms of both entities
// in both orders, with and without separators and common suffixes, then
// scores every real table against the battery with the same has-data tie-
// break as Resolve.
func (r *Resolver) ResolveRelationship(entityA, entityB string) *RelationshipMatch {
	v := r.snapshot()
	a := strings.ToLower(strings.TrimSpace(entityA))
	b := strings.ToLower(strings.TrimSpace(entityB))
	if a == "" || b == "" || len(v.tables) == 0 {
		return nil
	}

	battery := junctionCandidates(a, b)
	stemA := inflection.Singular(a)
	stemB := inflection.Singular(b)

	var candidates []Match
	for lower, orig := range v.tables {
		score := 0
		for _, cand := range battery {
			switch {
			case lower == cand:
				score = maxInt(score, scoreExact)
			case strings.Contains(lower, cand) || strings.Contains(cand, lower):
				score = maxInt(score, scoreSubstring)
			default:
				score = maxInt(score, fuzzy.BestRatio(lower, cand))
			}
			if score == scoreExact {
				break
			}
		}
		if strings.Contains(lower, stemA) && strings.Contains(lower, stemB) {
			score = maxInt(score, scoreBothStems)
		}
		if score >= r.threshold {
			candidates = append(candidates, Match{Name: orig, Score: score, HasData: v.hasData(orig)})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sortCandidates(candidates)
	best := candidates[0]
	return &RelationshipMatch{Table: best.Name, Score: best.Score, HasData: best.HasData}
}

// junctionCandidates builds the lower-cased name battery for an entity pair.
func junctionCandidates(a, b string) []string {
	formsOf := func(word string) []string {
		forms := []string{word}
		if singular := inflection.Singular(word); singular != word {
			forms = append(forms, singular)
		}
		if plural := inflection.Plural(word); plural != word {
			forms = append(forms, plural)
		}
		if !strings.HasSuffix(word, "s") {
			forms = append(forms, word+"s")
		}
		return dedupe(forms)
	}

	aForms := formsOf(a)
	bForms := formsOf(b)

	var battery []string
	addPair := func(x, y string) {
		base := []string{x + y, x + "_" + y}
		battery = append(battery, base...)
		for _, stem := range base {
			for _, suffix := range junctionSuffixes {
				if strings.HasPrefix(suffix, "_") {
					battery = append(battery, stem+suffix)
				} else {
					battery = append(battery, stem+suffix, stem+"_"+suffix)
				}
			}
		}
	}

	for _, x := range aForms {
		for _, y := range bForms {
			addPair(x, y)
			addPair(y, x)
		}
	}
	return dedupe(battery)
}

// sortCandidates orders matches by (hasData, score, shorter name).
func sortCandidates(candidates []Match) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].HasData != candidates[j].HasData {
			return candidates[i].HasData
		}
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return len(candidates[i].Name) < len(candidates[j].Name)
	})
}

func (r *Resolver) adjustScore(m Match) int {
	score := m.Score
	if m.HasData && score >= dataBoostFloor {
		score += dataBoost
		if score > scoreExact {
			score = scoreExact
		}
	} else if !m.HasData && score < scoreExact {
		score -= emptyPenalty
		if score < r.threshold {
			score = r.threshold
		}
	}
	return score
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
