package sentiment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed symbols.yaml
var defaultSymbols []byte

// SymbolTable maps lower-cased company names to exchange tickers.
type SymbolTable map[string]string

// DefaultSymbols returns the built-in table.
func DefaultSymbols() SymbolTable {
	t, err := ParseSymbols(defaultSymbols)
	if err != nil {
		panic(fmt.Sprintf("sentiment: bad embedded symbol table: %v", err))
	}
	return t
}

// LoadSymbols reads a YAML name→ticker mapping from path.
func LoadSymbols(path string) (SymbolTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbol table: %w", err)
	}
	return ParseSymbols(b)
}

// ParseSymbols decodes a YAML name→ticker mapping.
func ParseSymbols(b []byte) (SymbolTable, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse symbol table: %w", err)
	}
	t := make(SymbolTable, len(raw))
	for name, sym := range raw {
		name = strings.ToLower(strings.Join(strings.Fields(name), " "))
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if name == "" || sym == "" {
			continue
		}
		t[name] = sym
	}
	return t, nil
}

// Lookup returns the ticker for a company name, ignoring case and
// surrounding punctuation.
func (t SymbolTable) Lookup(name string) (string, bool) {
	key := strings.ToLower(strings.Trim(name, punctuation))
	if key == "" {
		return "", false
	}
	sym, ok := t[key]
	return sym, ok
}

const punctuation = " \t.,:;!?'\"()[]{}‘’“”"

// Watchlist looks up every contiguous word window of every headline and
// returns distinct tickers in first-seen order, at most limit of them.
func (t SymbolTable) Watchlist(headlines []string, limit int) []string {
	var (
		found []string
		seen  = map[string]bool{}
	)
	for _, h := range headlines {
		words := strings.Fields(h)
		for i := range words {
			for j := i + 1; j <= len(words); j++ {
				sym, ok := t.Lookup(strings.Join(words[i:j], " "))
				if !ok || seen[sym] {
					continue
				}
				seen[sym] = true
				found = append(found, sym)
			}
		}
	}
	if limit >= 0 && len(found) > limit {
		found = found[:limit]
	}
	if found == nil {
		found = []string{}
	}
	return found
}
