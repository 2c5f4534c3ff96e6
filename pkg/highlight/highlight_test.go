package highlight

import (
	"strings"
	"testing"
)

const goSource = `package main

import "fmt"

func main() {
	greeting := "hello"
	fmt.Println(greeting)
}
`

func TestExtractGoTokens(t *testing.T) {
	h, ok := Extract("main.go", goSource, 0, 0, 0)
	if !ok {
		t.Fatalf("expected a lexer match for main.go")
	}
	if h.Language != "Go" {
		t.Errorf("language = %q", h.Language)
	}
	if len(h.Tokens) == 0 {
		t.Fatalf("no tokens extracted")
	}

	var sawKeyword, sawString bool
	for _, tok := range h.Tokens {
		if tok.Text == "package" || tok.Text == "func" {
			sawKeyword = true
		}
		if strings.Contains(tok.Text, "hello") {
			sawString = true
		}
		if tok.Line < 1 {
			t.Errorf("token with bad line: %+v", tok)
		}
	}
	if !sawKeyword {
		t.Errorf("keywords missing from tokens")
	}
	if !sawString {
		t.Errorf("string literal missing from tokens")
	}
}

func TestExtractWindowAroundCursor(t *testing.T) {
	var b strings.Builder
	b.WriteString("package main\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("var x" + strings.Repeat("x", i%3) + " = 1\n")
	}

	h, ok := Extract("main.go", b.String(), 30, 5, 0)
	if !ok {
		t.Fatalf("lexer should match")
	}
	for _, tok := range h.Tokens {
		if tok.Line < 25 || tok.Line > 35 {
			t.Errorf("token outside window: line %d", tok.Line)
		}
	}
	if len(h.Tokens) == 0 {
		t.Errorf("window around line 30 should contain tokens")
	}
}

func TestExtractTokenLimit(t *testing.T) {
	h, ok := Extract("main.go", goSource, 0, 0, 3)
	if !ok {
		t.Fatalf("lexer should match")
	}
	if len(h.Tokens) > 3 {
		t.Errorf("limit ignored: %d tokens", len(h.Tokens))
	}
}

func TestExtractUnknownFileAbsent(t *testing.T) {
	if _, ok := Extract("data.zzz-unknown", "\x00\x01\x02", 0, 0, 0); ok {
		t.Errorf("unmatchable content should yield absent, not a guess")
	}
}

func TestLanguage(t *testing.T) {
	if got := Language("script.py", ""); got != "Python" {
		t.Errorf("Language(script.py) = %q", got)
	}
	if got := Language("noext-binary", ""); got != "" {
		t.Errorf("expected empty language, got %q", got)
	}
}
