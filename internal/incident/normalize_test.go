package incident

import (
	"errors"
	"testing"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence without info string", raw: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "leading prose", raw: "Here is the analysis:\n{\"a\":{\"b\":2}}", want: `{"a":{"b":2}}`},
		{name: "trailing commentary", raw: "{\"a\":1}\nLet me know if you need more.", want: `{"a":1}`},
		{name: "trailing object ignored", raw: `{"a":1} {"b":2}`, want: `{"a":1}`},
		{name: "braces in strings", raw: `{"summary":"user said } and {","n":1} extra }`, want: `{"summary":"user said } and {","n":1}`},
		{name: "escaped quote", raw: `{"s":"a \"quoted\" } brace"}`, want: `{"s":"a \"quoted\" } brace"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractObject(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractObject_Malformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"a":1`, "```json\n```"} {
		if _, err := extractObject(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("extractObject(%q) error = %v, want ErrMalformedResponse", raw, err)
		}
	}
}
