// Tests for the AWK parser.
package parser_test

import (
	"strings"
	"testing"

	"github.com/meefbo/AWK-Interpreter/parser"
)

// parseString parses the source and returns the program's printed
// form, which the tests compare against a normalized rendering.
func parseString(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.ParseProgram([]byte(src))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return prog.String()
}

func TestParseProgram(t *testing.T) {
	tests := []struct {
		src    string
		output string
	}{
		{`BEGIN { print "x" }`, "BEGIN {\n    print \"x\"\n}"},
		{`END { print NR }`, "END {\n    print NR\n}"},
		{`{ print $1 }`, "{\n    print $1\n}"},
		{`$1 == "x" { print }`, "($1 == \"x\") {\n    print \n}"},
		{`/foo/ { next }`, "($0 ~ /foo/) {\n    next\n}"},
		{`/foo/`, "($0 ~ /foo/) "},
		{`BEGIN { x = 1 + 2 * 3 }`, "BEGIN {\n    x = (1 + (2 * 3))\n}"},
		{`BEGIN { x = a b }`, "BEGIN {\n    x = (a b)\n}"},
		{`BEGIN { if (x) print "t"; else print "f" }`,
			"BEGIN {\n    if (x) {\n        print \"t\"\n    } else {\n        print \"f\"\n    }\n}"},
		{`BEGIN { while (x < 3) x++ }`, "BEGIN {\n    while (x < 3) {\n        x++\n    }\n}"},
		{`BEGIN { do x++; while (x < 3) }`, "BEGIN {\n    do {\n        x++\n    } while (x < 3)\n}"},
		{`BEGIN { for (i=0; i<3; i++) print i }`,
			"BEGIN {\n    for (i = 0; i < 3; i++) {\n        print i\n    }\n}"},
		{`BEGIN { for (k in a) print k }`, "BEGIN {\n    for (k in a) {\n        print k\n    }\n}"},
		{`BEGIN { delete a[1]; delete a }`, "BEGIN {\n    delete a[1]\n    delete a\n}"},
		{`BEGIN { print (1, 2) in a }`, "BEGIN {\n    print ((1, 2) in a)\n}"},
		{`BEGIN { x = y ~ /re/ }`, "BEGIN {\n    x = (y ~ /re/)\n}"},
		{`BEGIN { x = c ? "t" : "f" }`, "BEGIN {\n    x = (c ? \"t\" : \"f\")\n}"},
		{`BEGIN { printf "%d\n", 42 }`, "BEGIN {\n    printf \"%d\\n\", 42\n}"},
		{`BEGIN { getline; getline x }`, "BEGIN {\n    getline()\n    getline(x)\n}"},
		{`function f(a, b) { return a + b }`,
			"function f(a, b) {\n    return (a + b)\n}"},
		{`BEGIN { f(1) }  function f(a) { print a }`,
			"BEGIN {\n    f(1)\n}\n\nfunction f(a) {\n    print a\n}"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			output := parseString(t, test.src)
			if output != test.output {
				t.Errorf("expected %q, got %q", test.output, output)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src    string
		substr string
	}{
		{`BEGIN {`, "expected"},
		{`BEGIN { print ( }`, "expected expression"},
		{`{ 1 = 2 }`, "assignable target"},
		{`function f(1) { }`, "expected"},
		{`function f() { } function f() { }`, "already defined"},
		{`BEGIN { x = }`, "expected expression"},
		{`@`, "unexpected"},
	}
	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			_, err := parser.ParseProgram([]byte(test.src))
			if err == nil {
				t.Fatalf("expected parse error, got none")
			}
			if !strings.HasPrefix(err.Error(), "parse error at ") {
				t.Errorf("error should carry a position: %q", err.Error())
			}
			if !strings.Contains(err.Error(), test.substr) {
				t.Errorf("expected error containing %q, got %q", test.substr, err.Error())
			}
		})
	}
}

func TestParsePositions(t *testing.T) {
	prog, err := parser.ParseProgram([]byte("BEGIN {\n  x = 1\n}"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(prog.Begin) != 1 || len(prog.Begin[0]) != 1 {
		t.Fatalf("unexpected program shape: %s", prog)
	}
	pos := prog.Begin[0][0].Position()
	if pos.Line != 2 || pos.Column != 3 {
		t.Errorf("expected statement at 2:3, got %d:%d", pos.Line, pos.Column)
	}
}
