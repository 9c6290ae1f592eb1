package workload

import (
	"regexp"
	"sort"
	"strings"
)

var (
	limitSplitRe   = regexp.MustCompile(`;\s*limit `)
	dayIntervalRe  = regexp.MustCompile(` ([0-9]+) days\)`)
	subqueryOpenRe = regexp.MustCompile(`((from)|,)[ \t\n]*\(`)
)

// FixupPostgres rewrites qgen output so it runs on PostgreSQL: the
// trailing-limit statement split is joined back together, the runkit's
// "limit -1" is dropped, "N days" literals become interval syntax, and
// unaliased subqueries get an alias.
func FixupPostgres(text string) string {
	text = limitSplitRe.ReplaceAllString(text, " limit ")
	text = strings.ReplaceAll(text, "limit -1", "")
	text = dayIntervalRe.ReplaceAllString(text, " interval '$1 days')")
	text = addSubqueryAliases(text)
	return text
}

// PostgreSQL requires an alias on every from-clause subquery; the TPC
// templates omit them.
func addSubqueryAliases(query string) string {
	text := strings.ToLower(query)
	var positions []int

	for _, m := range subqueryOpenRe.FindAllStringIndex(text, -1) {
		// walk to the matching close paren
		depth := 1
		pos := m[1]
		for depth > 0 && pos < len(text) {
			switch text[pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
			pos++
		}
		if depth != 0 {
			continue
		}

		next := firstWord(query[pos:])
		if next == "" {
			continue
		}
		switch {
		case next[0] == ')' || next[0] == ',',
			next == "limit", next == "group", next == "order", next == "where":
			positions = append(positions, pos)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(positions)))
	for _, pos := range positions {
		query = query[:pos] + " as alias123 " + query[pos:]
	}
	return query
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " \t\n")
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		s = s[:i]
	}
	return s
}
