// Built-in function library: overload resolution, mutable-parameter
// write-back, and the native implementations.

package interp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	. "github.com/meefbo/AWK-Interpreter/lexer"
	"github.com/meefbo/AWK-Interpreter/parser"
)

// builtin is a native function with one or more acceptable parameter
// sets. A parameter whose name starts with "var" is mutable: it must
// be bound to a variable reference, and its (possibly mutated) value
// is copied back to the caller's binding after the call. Variadic
// builtins take any argument count, keyed "1".."N".
type builtin struct {
	name      string
	variadic  bool
	overloads [][]string
	fn        func(p *Interp, args map[string]value, pos Position) value
}

func builtinTable() map[string]*builtin {
	table := map[string]*builtin{
		"print": {
			name:     "print",
			variadic: true,
			fn:       execPrint,
		},
		"printf": {
			name:     "printf",
			variadic: true,
			fn:       execPrintf,
		},
		"getline": {
			name: "getline",
			overloads: [][]string{
				{}, // just advance to the next record
				{"var"},
			},
			fn: execGetline,
		},
		"sub": {
			name: "sub",
			overloads: [][]string{
				{"regex", "replacement", "var"},
				{"regex", "replacement"}, // defaults to $0
			},
			fn: func(p *Interp, args map[string]value, pos Position) value {
				return execSub(p, args, pos, false)
			},
		},
		"gsub": {
			name: "gsub",
			overloads: [][]string{
				{"regex", "replacement", "var"},
				{"regex", "replacement"}, // defaults to $0
			},
			fn: func(p *Interp, args map[string]value, pos Position) value {
				return execSub(p, args, pos, true)
			},
		},
		"match": {
			name: "match",
			overloads: [][]string{
				{"target", "regex"},
				{"target", "regex", "varArray"},
			},
			fn: execMatch,
		},
		"length": {
			name: "length",
			overloads: [][]string{
				{"target"},
				{}, // defaults to $0
			},
			fn: execLength,
		},
		"index": {
			name: "index",
			overloads: [][]string{
				{"string", "substring"},
			},
			fn: execIndex,
		},
		"substr": {
			name: "substr",
			overloads: [][]string{
				{"string", "start", "length"},
				{"string", "start"},
			},
			fn: execSubstr,
		},
		"tolower": {
			name: "tolower",
			overloads: [][]string{
				{"string"},
			},
			fn: execToLower,
		},
		"toupper": {
			name: "toupper",
			overloads: [][]string{
				{"string"},
			},
			fn: execToUpper,
		},
	}
	return table
}

// callBuiltin binds arguments against the builtin's parameter sets in
// declared order; the first set that fills completely wins. Binding a
// "var" parameter requires a variable reference and records the
// caller-side name, so the parameter's value can be written back
// after the call.
func (p *Interp) callBuiltin(b *builtin, call *parser.CallExpr) value {
	if b.variadic {
		args := make(map[string]value, len(call.Args))
		for i, arg := range call.Args {
			args[strconv.Itoa(i+1)] = p.eval(arg)
		}
		return b.fn(p, args, call.Pos)
	}
	for _, params := range b.overloads {
		if len(params) != len(call.Args) {
			continue
		}
		args := make(map[string]value, len(params))
		varNames := make(map[string]string) // caller variable -> parameter
		ok := true
		for i, param := range params {
			argNode := call.Args[i]
			if strings.HasPrefix(param, "var") {
				varRef, isVar := argNode.(*parser.VarExpr)
				if !isVar {
					ok = false
					break
				}
				varNames[varRef.Name] = param
				// Unbound reads as the empty scalar
				args[param] = p.getVar(varRef.Name)
			} else if re, isRegex := argNode.(*parser.RegExpr); isRegex {
				// Regex literals are accepted here as their pattern text
				args[param] = str(re.Regex)
			} else {
				args[param] = p.eval(argNode)
			}
		}
		if !ok {
			continue
		}
		result := b.fn(p, args, call.Pos)
		for name, param := range varNames {
			p.assignVar(name, args[param], call.Pos)
		}
		return result
	}
	panic(newError(ArgumentError, call.Pos,
		"no matching parameter set for %q: check argument count and variable parameters", b.name))
}

// callBuiltinStmt routes the print and printf statements through the
// variadic builtin path.
func (p *Interp) callBuiltinStmt(name string, argNodes []parser.Expr, pos Position) {
	b := p.builtins[name]
	args := make(map[string]value, len(argNodes))
	for i, arg := range argNodes {
		args[strconv.Itoa(i+1)] = p.eval(arg)
	}
	b.fn(p, args, pos)
}

// numberedArgs collects the "1".."N" entries of a variadic call.
func (p *Interp) numberedArgs(args map[string]value, pos Position) []string {
	var parts []string
	for i := 1; ; i++ {
		v, ok := args[strconv.Itoa(i)]
		if !ok {
			break
		}
		parts = append(parts, p.toStr(v, pos))
	}
	return parts
}

// execPrint writes the arguments joined by OFS, followed by a
// newline. With no arguments it prints $0.
func execPrint(p *Interp, args map[string]value, pos Position) value {
	parts := p.numberedArgs(args, pos)
	line := p.man.line
	if len(parts) > 0 {
		line = strings.Join(parts, p.outputFieldSep)
	}
	io.WriteString(p.output, line+"\n")
	return str(line)
}

func execPrintf(p *Interp, args map[string]value, pos Position) value {
	format, ok := args["1"]
	if !ok {
		panic(newError(ArgumentError, pos, "printf requires a format string"))
	}
	var rest []value
	for i := 2; ; i++ {
		v, found := args[strconv.Itoa(i)]
		if !found {
			break
		}
		rest = append(rest, v)
	}
	out := p.sprintf(p.toStr(format, pos), rest, pos)
	io.WriteString(p.output, out)
	return str(out)
}

// execGetline advances the input. Bare getline loads and splits the
// next record; getline var stores the raw next line into the variable
// without re-splitting. Both return "1" on success and "0" at EOF,
// and both count the line in NR and FNR.
func execGetline(p *Interp, args map[string]value, pos Position) value {
	if _, ok := args["var"]; !ok {
		return boolean(p.nextRecord())
	}
	line, ok := p.man.nextRaw()
	if !ok {
		return boolean(false)
	}
	args["var"] = str(line)
	return boolean(true)
}

// execSub replaces the first (sub) or all (gsub) matches of the regex
// in the target variable, default $0. Editing $0 re-splits the
// record. Returns the number of substitutions made.
func execSub(p *Interp, args map[string]value, pos Position, global bool) value {
	re := p.mustCompile(p.toStr(args["regex"], pos), pos)
	repl := p.toStr(args["replacement"], pos)
	in := p.man.line
	target, hasVar := args["var"]
	if hasVar {
		in = p.toStr(target, pos)
	}
	out, n := replace(re, repl, in, global)
	if hasVar {
		args["var"] = str(out)
	} else {
		p.setLine(out)
	}
	return str(strconv.Itoa(n))
}

// replace does the substitution work for sub and gsub, handling the
// & and \& conventions in the replacement string.
func replace(re *regexp.Regexp, repl, in string, global bool) (out string, n int) {
	count := 0
	out = re.ReplaceAllStringFunc(in, func(s string) string {
		if !global && count > 0 {
			return s
		}
		count++
		r := make([]byte, 0, len(repl))
		for i := 0; i < len(repl); i++ {
			switch repl[i] {
			case '&':
				r = append(r, s...)
			case '\\':
				i++
				if i < len(repl) {
					switch repl[i] {
					case '&':
						r = append(r, repl[i])
					default:
						r = append(r, '\\', repl[i])
					}
				} else {
					r = append(r, '\\')
				}
			default:
				r = append(r, repl[i])
			}
		}
		return string(r)
	})
	return out, count
}

// execMatch returns the 1-based index of the first regex match in the
// target, or 0. With varArray present, the array is replaced with the
// match groups keyed "0" (whole match) through "N".
func execMatch(p *Interp, args map[string]value, pos Position) value {
	re := p.mustCompile(p.toStr(args["regex"], pos), pos)
	target := p.toStr(args["target"], pos)
	loc := re.FindStringSubmatchIndex(target)
	if loc == nil {
		return str("0")
	}
	if _, ok := args["varArray"]; ok {
		groups := newArray()
		for j := 0; 2*j < len(loc); j++ {
			group := ""
			if loc[2*j] >= 0 {
				group = target[loc[2*j]:loc[2*j+1]]
			}
			groups.m[strconv.Itoa(j)] = str(group)
		}
		args["varArray"] = groups
	}
	return str(strconv.Itoa(loc[0] + 1))
}

// execLength returns the element count for an array and the string
// length for a scalar; with no argument it measures $0.
func execLength(p *Interp, args map[string]value, pos Position) value {
	target, ok := args["target"]
	if !ok {
		target = str(p.man.line)
	}
	if target.isArr {
		return str(strconv.Itoa(len(target.m)))
	}
	return str(strconv.Itoa(len(target.s)))
}

func execIndex(p *Interp, args map[string]value, pos Position) value {
	s := p.toStr(args["string"], pos)
	substr := p.toStr(args["substring"], pos)
	return str(strconv.Itoa(strings.Index(s, substr) + 1))
}

// execSubstr is the POSIX clamp-and-slice: 1-based start clamped to
// the string, length clamped to what remains (missing means to the
// end), negative or zero length yields the empty string.
func execSubstr(p *Interp, args map[string]value, pos Position) value {
	s := p.toStr(args["string"], pos)
	start := int(p.toNum(args["start"], pos, "substr"))
	if start > len(s) {
		start = len(s) + 1
	}
	if start < 1 {
		start = 1
	}
	maxLength := len(s) - start + 1
	length := maxLength
	if l, ok := args["length"]; ok {
		length = int(p.toNum(l, pos, "substr"))
		if length < 0 {
			length = 0
		}
		if length > maxLength {
			length = maxLength
		}
	}
	return str(s[start-1 : start-1+length])
}

// Case folding uses the Go strings package, so it is Unicode-aware
// rather than ASCII-only.
func execToLower(p *Interp, args map[string]value, pos Position) value {
	return str(strings.ToLower(p.toStr(args["string"], pos)))
}

func execToUpper(p *Interp, args map[string]value, pos Position) value {
	return str(strings.ToUpper(p.toStr(args["string"], pos)))
}

// parseFmtTypes parses the conversions out of a printf format string,
// rewriting the ones Go's fmt doesn't share with C.
func parseFmtTypes(s string) (format string, types []byte, err error) {
	out := []byte(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			i++
			if i >= len(s) {
				return "", nil, errors.New("expected type specifier after %")
			}
			if s[i] == '%' {
				continue
			}
			for i < len(s) && bytes.IndexByte([]byte(".-+*#0123456789"), s[i]) >= 0 {
				if s[i] == '*' {
					types = append(types, 'd')
				}
				i++
			}
			if i >= len(s) {
				return "", nil, errors.New("expected type specifier after %")
			}
			var t byte
			switch s[i] {
			case 'd', 'i', 'o', 'x', 'X':
				t = 'd'
				if s[i] == 'i' {
					out[i] = 'd'
				}
			case 'u':
				t = 'u'
				out[i] = 'd'
			case 'c':
				t = 'c'
				out[i] = 's'
			case 'f', 'e', 'E', 'g', 'G':
				t = 'f'
			case 's':
				t = 's'
			default:
				return "", nil, fmt.Errorf("invalid format type %q", s[i])
			}
			types = append(types, t)
		}
	}
	return string(out), types, nil
}

// sprintf formats args following the conversions in format,
// type-coercing each argument per the matching conversion.
func (p *Interp) sprintf(format string, args []value, pos Position) string {
	format, types, err := parseFmtTypes(format)
	if err != nil {
		panic(newError(ArgumentError, pos, "format error: %s", err))
	}
	if len(types) > len(args) {
		panic(newError(ArgumentError, pos, "format error: got %d args, expected %d", len(args), len(types)))
	}
	converted := make([]interface{}, len(types))
	for i, t := range types {
		a := args[i]
		s := p.toStr(a, pos)
		var v interface{}
		switch t {
		case 'd':
			v = int(numPrefix(s))
		case 'u':
			v = uint32(numPrefix(s))
		case 'c':
			if n, isNum := parseNum(s); isNum {
				v = string(rune(int(n)))
			} else if len(s) > 0 {
				v = s[:1]
			} else {
				v = "\x00"
			}
		case 'f':
			v = numPrefix(s)
		case 's':
			v = s
		}
		converted[i] = v
	}
	return fmt.Sprintf(format, converted...)
}
