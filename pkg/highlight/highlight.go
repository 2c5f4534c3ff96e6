// Package highlight extracts syntax tokens around the cursor so the
// assistant sees how the editor colors the code it is being asked about.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/odvcencio/spyglass/pkg/snapshot"
)

// Extract tokenizes source and returns the tokens within radius lines of
// cursorLine, capped at limit tokens. A non-positive cursorLine disables
// the window and tokens are taken from the top of the file. Returns false
// when no lexer matches the file or tokenization fails.
func Extract(path, source string, cursorLine, radius, limit int) (*snapshot.Highlights, bool) {
	lexer := lookupLexer(path, source)
	if lexer == nil {
		return nil, false
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil, false
	}

	lo, hi := window(cursorLine, radius)
	out := &snapshot.Highlights{
		Language: lexer.Config().Name,
		Tokens:   []snapshot.HighlightToken{},
	}

	line := 1
	for tok := it(); tok != chroma.EOF; tok = it() {
		startLine := line
		line += strings.Count(tok.Value, "\n")

		if startLine < lo {
			continue
		}
		if startLine > hi {
			break
		}
		if tok.Type == chroma.Text || strings.TrimSpace(tok.Value) == "" {
			continue
		}

		out.Tokens = append(out.Tokens, snapshot.HighlightToken{
			Line:  startLine,
			Text:  strings.TrimRight(tok.Value, "\n"),
			Scope: tok.Type.String(),
		})
		if limit > 0 && len(out.Tokens) >= limit {
			break
		}
	}
	return out, true
}

// Language names the language chroma associates with a file, or "" when
// none matches. Used for the current_file section.
func Language(path, sample string) string {
	lexer := lookupLexer(path, sample)
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}

func lookupLexer(path, source string) chroma.Lexer {
	if lexer := lexers.Match(path); lexer != nil {
		return lexer
	}
	if source != "" {
		return lexers.Analyse(source)
	}
	return nil
}

func window(cursorLine, radius int) (int, int) {
	if cursorLine <= 0 {
		return 1, 1<<31 - 1
	}
	if radius <= 0 {
		radius = 10
	}
	lo := cursorLine - radius
	if lo < 1 {
		lo = 1
	}
	return lo, cursorLine + radius
}
