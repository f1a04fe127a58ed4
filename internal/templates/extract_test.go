package templates

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		rule Rule
		want []string
	}{
		{name: "single", text: "{{hello}}", want: []string{"hello"}},
		{name: "default draft", text: "\n{{hello}}\n", want: []string{"hello"}},
		{name: "dedupe keeps first occurrence", text: "{{b}} {{a}} {{b}} {{c}} {{a}}", want: []string{"b", "a", "c"}},
		{name: "empty", text: "", want: []string{}},
		{name: "plain text", text: "no placeholders here", want: []string{}},
		{name: "block excluded", text: "{{#if x}}yes{{/if}}", want: []string{}},
		{name: "nested in block excluded", text: "{{a}}{{#each items}}{{b}}{{/each}}", want: []string{"a"}},
		{name: "comment excluded", text: "{{! note }}{{a}}", want: []string{"a"}},
		{name: "partial excluded", text: "{{> footer}}{{a}}", want: []string{"a"}},
		{name: "triple stash", text: "{{{raw}}}", want: []string{"raw"}},
		{name: "helper first param", text: "{{upper name}}", want: []string{"name"}},
		{name: "helper string literal", text: `{{upper "label"}}`, want: []string{"label"}},
		{name: "helper path rule", text: "{{upper name}}", rule: RulePath, want: []string{"upper"}},
		{name: "subexpression param skipped", text: "{{upper (lower x)}}", want: []string{}},
		{name: "self param skipped", text: "{{lookup . 'x'}}", want: []string{}},
		{name: "this param skipped", text: "{{upper this}}", want: []string{}},
		{name: "number param skipped", text: "{{pad 3}} {{a}}", want: []string{"a"}},
		{name: "boolean param skipped", text: "{{flag true}}", want: []string{}},
		{name: "data param skipped", text: "{{upper @index}}", want: []string{}},
		{name: "dynamic param with path rule", text: "{{upper (lower x)}}", rule: RulePath, want: []string{"upper"}},
		{name: "segment literal", text: "{{[first name]}}", want: []string{"first name"}},
		{name: "data variable skipped", text: "{{@index}}", want: []string{}},
		{name: "this skipped", text: "{{this}}", want: []string{}},
		{name: "parent skipped", text: "{{../up}}", want: []string{}},
		{name: "dotted skipped", text: "{{user.name}} {{x}}", want: []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extractor{Rule: tt.rule}.Extract(tt.text)
			if err != nil {
				t.Fatalf("Extract(%q): %v", tt.text, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Extract(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestExtractParseError(t *testing.T) {
	for _, text := range []string{"{{unterminated", "{{foo}", "{{#a}}{{/b}}", "Hi {{name}} and {{"} {
		_, err := Extract(text)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("Extract(%q): expected ParseError, got %v", text, err)
		}
		if parseErr.Message == "" {
			t.Fatalf("Extract(%q): empty parse error message", text)
		}
	}
}

func TestParseErrorLine(t *testing.T) {
	_, err := Extract("line one\nline two {{#a}}\n{{/b}}")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line == 0 {
		t.Fatalf("expected a line number, got %+v", parseErr)
	}
}

func TestParseRule(t *testing.T) {
	if rule, err := ParseRule(""); err != nil || rule != DefaultRule {
		t.Fatalf("empty rule: got %q, %v", rule, err)
	}
	if rule, err := ParseRule(" PATH "); err != nil || rule != RulePath {
		t.Fatalf("path rule: got %q, %v", rule, err)
	}
	if _, err := ParseRule("regex"); err == nil {
		t.Fatalf("expected error for unknown rule")
	}
}
