package rewriter

import (
	"fmt"
	"regexp"
	"strings"
)

// TokenKind discriminates the three shapes a token can take
// (spec.md §4.2).
type TokenKind int

const (
	TokenRaw TokenKind = iota
	TokenTarget
	TokenRootDef
)

// Token is one element of a tokenized Makefile.
type Token struct {
	Kind TokenKind

	// TokenRaw
	Text string

	// TokenTarget
	Target  string
	Label   *Label // nil means the target is unlabeled (local)
	Command string // everything after the colon, verbatim, including the recipe

	// TokenRootDef
	RootHost string
	RootPath string
}

var (
	rootDefRe = regexp.MustCompile(`^#!ROOT_DEF\s+(\S+)\s*=\s*(\S+)\s*$`)
	targetRe  = regexp.MustCompile(`^([A-Za-z0-9_./+-]+)(\[[^\]]*\])?\s*:(.*)$`)
)

// Tokenize splits raw Makefile text into a sequence of Tokens. It is a pure
// function of its input and of the Resolver used to resolve any DNS-name
// labels; it never touches the filesystem (spec.md §9 "Rewriter purity").
func Tokenize(r Resolver, text string) ([]Token, error) {
	lines := strings.Split(text, "\n")

	var tokens []Token
	var rawBuf []string

	flushRaw := func() {
		if len(rawBuf) == 0 {
			return
		}
		tokens = append(tokens, Token{Kind: TokenRaw, Text: strings.Join(rawBuf, "\n") + "\n"})
		rawBuf = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if i == len(lines)-1 && line == "" {
			// trailing newline produced an empty final element; drop it
			break
		}

		if m := rootDefRe.FindStringSubmatch(line); m != nil {
			flushRaw()
			tokens = append(tokens, Token{Kind: TokenRootDef, RootHost: m[1], RootPath: m[2]})
			continue
		}

		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "#") || strings.Contains(line, "=") {
			rawBuf = append(rawBuf, line)
			continue
		}

		if m := targetRe.FindStringSubmatch(line); m != nil {
			flushRaw()

			target := m[1]
			labelRaw := m[2]
			command := m[3]

			// absorb tab-indented recipe lines that follow the rule header
			var recipe []string
			for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
				i++
				recipe = append(recipe, lines[i])
			}
			if len(recipe) > 0 {
				command = command + "\n" + strings.Join(recipe, "\n")
			}

			var label *Label
			if labelRaw != "" {
				parsed, err := ParseLabel(r, strings.TrimSuffix(strings.TrimPrefix(labelRaw, "["), "]"))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", i+1, err)
				}
				label = &parsed
			}

			tokens = append(tokens, Token{
				Kind:    TokenTarget,
				Target:  target,
				Label:   label,
				Command: command,
			})
			continue
		}

		rawBuf = append(rawBuf, line)
	}

	flushRaw()

	return tokens, nil
}
