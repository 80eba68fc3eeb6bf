package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// gographviz does not keep edges in source order, and edge order decides
// which rule wins, so edges are re-read from the raw text.

type edgeStmt struct {
	From string
	To   string
	Cond string
}

func dotStatements(dot string) []string {
	var out []string
	var b strings.Builder
	inQuotes := false
	escape := false

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for _, r := range dot {
		if escape {
			b.WriteRune(r)
			escape = false
			continue
		}
		switch {
		case r == '\\' && inQuotes:
			escape = true
		case r == '"':
			inQuotes = !inQuotes
		case (r == ';' || r == '\n' || r == '{' || r == '}') && !inQuotes:
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

var (
	edgeStmtRe = regexp.MustCompile(`^\s*("[^"]+"|[A-Za-z_][A-Za-z0-9_]*)\s*->\s*("[^"]+"|[A-Za-z_][A-Za-z0-9_]*)\s*(\[(.*)\])?\s*$`)
	labelRe    = regexp.MustCompile(`label\s*=\s*"((?:[^"\\]|\\.)*)"`)
)

func edgesInSourceOrder(dot string) ([]edgeStmt, error) {
	out := make([]edgeStmt, 0)

	for _, s := range dotStatements(dot) {
		if !strings.Contains(s, "->") {
			continue
		}

		m := edgeStmtRe.FindStringSubmatch(s)
		if m == nil {
			return nil, fmt.Errorf("unsupported edge statement: %q", s)
		}

		edge := edgeStmt{From: strings.Trim(m[1], `"`), To: strings.Trim(m[2], `"`)}
		if attrs := m[4]; attrs != "" {
			if cm := labelRe.FindStringSubmatch(attrs); cm != nil {
				edge.Cond = strings.TrimSpace(strings.ReplaceAll(cm[1], `\"`, `"`))
			}
		}
		out = append(out, edge)
	}

	return out, nil
}
