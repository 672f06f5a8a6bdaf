// Package interp is the AWK interpreter core (a simple tree-walker).
//
// Use New to create an interpreter, then Interp.Exec to run a parsed
// program over a set of input files. The final global environment is
// available afterwards via Interp.Globals, for tests and embedders.
package interp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	. "github.com/meefbo/AWK-Interpreter/lexer"
	"github.com/meefbo/AWK-Interpreter/parser"
)

// ErrorKind classifies interpreter errors.
type ErrorKind int

const (
	// ProgramError is a structurally invalid program, for example
	// break outside a loop or a call to an undefined function.
	ProgramError ErrorKind = iota
	// TypeError is a value used against its variant: arithmetic on a
	// non-number, a scalar used as an array, or vice versa.
	TypeError
	// IndexError is a field or array index out of range.
	IndexError
	// ArgumentError is a builtin called with arguments that fit none
	// of its parameter sets, or a user function called with too few
	// arguments.
	ArgumentError
)

func (k ErrorKind) String() string {
	switch k {
	case ProgramError:
		return "program error"
	case TypeError:
		return "type error"
	case IndexError:
		return "index error"
	case ArgumentError:
		return "argument error"
	default:
		return "error"
	}
}

// Error (actually *Error) is returned by Exec on interpreter error.
// Every error carries the source position of the node that raised it.
type Error struct {
	Kind     ErrorKind
	Position Position
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Position.Line, e.Position.Column, e.Message)
}

func newError(kind ErrorKind, pos Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Position: pos, Message: fmt.Sprintf(format, args...)}
}

// Statement evaluation returns nil for normal completion or one of
// these signals. Loops consume loopSignal, function calls consume
// returnValue, and the record loop consumes nextSignal; a signal
// reaching a block boundary unconsumed is a ProgramError.
type loopSignal struct {
	op  Token // BREAK or CONTINUE
	pos Position
}

func (s loopSignal) Error() string { return "<" + s.op.String() + ">" }

type nextSignal struct {
	pos Position
}

func (s nextSignal) Error() string { return "<next>" }

type returnValue struct {
	value value
	pos   Position
}

func (r returnValue) Error() string { return "<return " + r.value.s + ">" }

// Interp holds the state of one interpreter run: the program, the
// two-tier variable environment, the record manager, and the output
// sink. Create one with New.
type Interp struct {
	program     *parser.Program
	output      io.Writer
	flushOutput bool

	globals map[string]value
	locals  map[string]value // nil outside function calls

	man lineManager

	fieldSep       string
	outputFieldSep string
	outputFormat   string

	builtins   map[string]*builtin
	regexCache map[string]*regexp.Regexp
}

const maxCachedRegexes = 100

// New creates an interpreter writing to the given output (nil means a
// buffered os.Stdout, flushed when Exec returns).
func New(output io.Writer) *Interp {
	p := &Interp{}
	if output == nil {
		output = bufio.NewWriterSize(os.Stdout, 64*1024)
		p.flushOutput = true
	}
	p.output = output
	p.globals = make(map[string]value)
	p.regexCache = make(map[string]*regexp.Regexp, 10)
	p.fieldSep = " "
	p.outputFieldSep = " "
	p.outputFormat = "%.6g"
	p.builtins = builtinTable()
	return p
}

// Exec runs the program: BEGIN blocks, then each pattern/action block
// against every record of the inputs in order, then END blocks with
// the last record still latched. vars seeds initial values of FS,
// OFS, and OFMT (other names are ignored). With no inputs there are
// no records and only BEGIN and END run.
func (p *Interp) Exec(prog *parser.Program, inputs []InputFile, vars map[string]string) error {
	p.program = prog
	if fs, ok := vars["FS"]; ok {
		p.fieldSep = fs
	}
	if ofs, ok := vars["OFS"]; ok {
		p.outputFieldSep = ofs
	}
	if ofmt, ok := vars["OFMT"]; ok {
		p.outputFormat = ofmt
	}
	p.man.open(inputs)
	defer func() {
		if p.flushOutput {
			p.output.(*bufio.Writer).Flush()
		}
	}()

	for _, ss := range prog.Begin {
		if err := p.executes(ss); err != nil {
			return p.blockError(err, "BEGIN")
		}
	}
	if len(prog.Actions) == 0 && len(prog.End) == 0 {
		return nil
	}
	if p.nextRecord() {
	recordLoop:
		for {
			for _, action := range prog.Actions {
				matched, err := p.matches(action.Pattern)
				if err != nil {
					return err
				}
				if !matched {
					continue
				}
				if action.Stmts == nil {
					// Pattern with no action prints the record
					io.WriteString(p.output, p.man.line+"\n")
					continue
				}
				err = p.executes(action.Stmts)
				if _, ok := err.(nextSignal); ok {
					// Skip the remaining blocks for this record
					if p.nextRecord() {
						continue recordLoop
					}
					break recordLoop
				}
				if err != nil {
					return p.blockError(err, "main")
				}
			}
			if !p.nextRecord() {
				break
			}
		}
	}
	for _, ss := range prog.End {
		if err := p.executes(ss); err != nil {
			return p.blockError(err, "END")
		}
	}
	return nil
}

// SwitchFile re-points the record manager at a new input source:
// FNR resets to 0 and FILENAME updates; NR keeps counting.
func (p *Interp) SwitchFile(name string, r io.Reader) {
	p.man.switchFile(name, r)
}

// Globals returns the final scalar global environment, including the
// well-known variables, with every value in its canonical form.
func (p *Interp) Globals() map[string]string {
	g := map[string]string{
		"FS":       p.fieldSep,
		"OFS":      p.outputFieldSep,
		"OFMT":     p.outputFormat,
		"NR":       strconv.Itoa(p.man.lineNum),
		"FNR":      strconv.Itoa(p.man.fileLineNum),
		"NF":       strconv.Itoa(len(p.man.fields)),
		"FILENAME": p.man.filename,
	}
	for name, v := range p.globals {
		if !v.isArr {
			g[name] = v.s
		}
	}
	return g
}

// Array returns the scalar elements of a global array (nested
// sub-arrays are omitted), or nil if the name isn't a bound array.
func (p *Interp) Array(name string) map[string]string {
	v, ok := p.globals[name]
	if !ok || !v.isArr {
		return nil
	}
	elems := make(map[string]string, len(v.m))
	for key, elem := range v.m {
		if !elem.isArr {
			elems[key] = elem.s
		}
	}
	return elems
}

// blockError converts a control signal that escaped to a block
// boundary into a ProgramError at the signal's origin.
func (p *Interp) blockError(err error, where string) error {
	switch e := err.(type) {
	case loopSignal:
		return newError(ProgramError, e.pos, "cannot use %s outside of a loop, in %s block", e.op, where)
	case returnValue:
		return newError(ProgramError, e.pos, "cannot return outside of a function, in %s block", where)
	case nextSignal:
		return newError(ProgramError, e.pos, "cannot use next in %s block", where)
	default:
		return err
	}
}

// matches evaluates a block predicate against the current record. A
// nil predicate always matches; a bare regex matches $0.
func (p *Interp) matches(pattern parser.Expr) (matched bool, err error) {
	if pattern == nil {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				err = e
			case nextSignal:
				err = newError(ProgramError, e.pos, "cannot use next in a pattern")
			default:
				panic(r)
			}
		}
	}()
	if re, ok := pattern.(*parser.RegExpr); ok {
		return p.mustCompile(re.Regex, re.Pos).MatchString(p.man.line), nil
	}
	return p.eval(pattern).boolean(), nil
}

func (p *Interp) executes(stmts parser.Stmts) error {
	for _, s := range stmts {
		err := p.execute(s)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Interp) execute(stmt parser.Stmt) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			// Convert to interpreter Error, catch a next signal
			// crossing out of a function call, or re-panic
			switch e := r.(type) {
			case *Error:
				execErr = e
			case nextSignal:
				execErr = e
			default:
				panic(r)
			}
		}
	}()

	switch s := stmt.(type) {
	case *parser.PrintStmt:
		p.callBuiltinStmt("print", s.Args, s.Pos)
	case *parser.PrintfStmt:
		p.callBuiltinStmt("printf", s.Args, s.Pos)
	case *parser.ExprStmt:
		p.eval(s.Expr)
	case *parser.IfStmt:
		if p.eval(s.Cond).boolean() {
			return p.executes(s.Body)
		}
		return p.executes(s.Else)
	case *parser.WhileStmt:
		for p.eval(s.Cond).boolean() {
			err := p.executes(s.Body)
			if sig, ok := err.(loopSignal); ok {
				if sig.op == BREAK {
					break
				}
				continue
			}
			if err != nil {
				return err
			}
		}
	case *parser.DoWhileStmt:
		for {
			err := p.executes(s.Body)
			if sig, ok := err.(loopSignal); ok {
				if sig.op == BREAK {
					break
				}
			} else if err != nil {
				return err
			}
			if !p.eval(s.Cond).boolean() {
				break
			}
		}
	case *parser.ForStmt:
		if s.Pre != nil {
			err := p.execute(s.Pre)
			if err != nil {
				return err
			}
		}
		for s.Cond == nil || p.eval(s.Cond).boolean() {
			err := p.executes(s.Body)
			if sig, ok := err.(loopSignal); ok {
				if sig.op == BREAK {
					break
				}
				// continue still runs the post statement
			} else if err != nil {
				return err
			}
			if s.Post != nil {
				err := p.execute(s.Post)
				if err != nil {
					return err
				}
			}
		}
	case *parser.ForInStmt:
		arr := p.arrayFor(s.Array, false, s.Pos)
		if arr == nil {
			break
		}
		// Iterate over a snapshot of the keys so the body can safely
		// modify the array
		keys := make([]string, 0, len(arr))
		for key := range arr {
			keys = append(keys, key)
		}
		for _, key := range keys {
			p.assignVar(s.Var, str(key), s.Pos)
			err := p.executes(s.Body)
			if sig, ok := err.(loopSignal); ok {
				if sig.op == BREAK {
					break
				}
				continue
			}
			if err != nil {
				return err
			}
		}
	case *parser.BreakStmt:
		return loopSignal{op: BREAK, pos: s.Pos}
	case *parser.ContinueStmt:
		return loopSignal{op: CONTINUE, pos: s.Pos}
	case *parser.NextStmt:
		return nextSignal{pos: s.Pos}
	case *parser.ReturnStmt:
		var v value
		if s.Value != nil {
			v = p.eval(s.Value)
		} else {
			v = str("")
		}
		return returnValue{value: v, pos: s.Pos}
	case *parser.DeleteStmt:
		p.executeDelete(s)
	default:
		panic(fmt.Sprintf("unexpected stmt type: %T", stmt))
	}
	return nil
}

func (p *Interp) executeDelete(s *parser.DeleteStmt) {
	arr := p.arrayFor(s.Array, false, s.Pos)
	if len(s.Index) == 0 {
		// delete a: clear the whole array (in place, since the
		// backing map may be aliased)
		for key := range arr {
			delete(arr, key)
		}
		return
	}
	for _, index := range s.Index {
		key := arrayKey(p.eval(index))
		if arr == nil {
			panic(newError(IndexError, s.Pos, "index %q out of bounds for array %q", key, s.Array))
		}
		if _, ok := arr[key]; !ok {
			panic(newError(IndexError, s.Pos, "index %q out of bounds for array %q", key, s.Array))
		}
		delete(arr, key)
	}
}

func (p *Interp) eval(expr parser.Expr) value {
	switch e := expr.(type) {
	case *parser.NumExpr:
		return str(e.Value)
	case *parser.StrExpr:
		return str(e.Value)
	case *parser.RegExpr:
		panic(newError(ProgramError, e.Pos,
			"regex literal only valid as a pattern or a regex argument"))
	case *parser.VarExpr:
		return p.getVar(e.Name)
	case *parser.FieldExpr:
		index := p.fieldIndex(p.eval(e.Index), e.Pos)
		return p.getField(index, e.Pos)
	case *parser.IndexExpr:
		return p.getArrayElem(e)
	case *parser.UnaryExpr:
		return p.evalUnary(e)
	case *parser.BinaryExpr:
		return p.evalBinary(e)
	case *parser.InExpr:
		return p.evalIn(e)
	case *parser.CondExpr:
		if p.eval(e.Cond).boolean() {
			return p.eval(e.True)
		}
		return p.eval(e.False)
	case *parser.AssignExpr:
		return p.evalAssign(e)
	case *parser.IncrExpr:
		return p.evalIncr(e)
	case *parser.CallExpr:
		return p.call(e)
	default:
		panic(fmt.Sprintf("unexpected expr type: %T", expr))
	}
}

func (p *Interp) evalUnary(e *parser.UnaryExpr) value {
	v := p.eval(e.Value)
	switch e.Op {
	case NOT:
		return boolean(!v.boolean())
	case SUB:
		return str(p.numToStr(-p.toNum(v, e.Pos, "-")))
	case ADD:
		// Lenient: longest numeric prefix, else 0
		return str(p.numToStr(numPrefix(p.toStr(v, e.Pos))))
	default:
		panic(fmt.Sprintf("unexpected unary operation: %s", e.Op))
	}
}

func (p *Interp) evalBinary(e *parser.BinaryExpr) value {
	// Short-circuit operators evaluate the right side lazily
	switch e.Op {
	case AND:
		if !p.eval(e.Left).boolean() {
			return boolean(false)
		}
		return boolean(p.eval(e.Right).boolean())
	case OR:
		if p.eval(e.Left).boolean() {
			return boolean(true)
		}
		return boolean(p.eval(e.Right).boolean())
	case MATCH, NOT_MATCH:
		left := p.toStr(p.eval(e.Left), e.Pos)
		matched := p.regexpArg(e.Right, e.Pos).MatchString(left)
		if e.Op == NOT_MATCH {
			matched = !matched
		}
		return boolean(matched)
	}

	left := p.eval(e.Left)
	right := p.eval(e.Right)
	switch e.Op {
	case ADD:
		return str(p.numToStr(p.toNum(left, e.Pos, "+") + p.toNum(right, e.Pos, "+")))
	case SUB:
		return str(p.numToStr(p.toNum(left, e.Pos, "-") - p.toNum(right, e.Pos, "-")))
	case MUL:
		return str(p.numToStr(p.toNum(left, e.Pos, "*") * p.toNum(right, e.Pos, "*")))
	case DIV:
		divisor := p.toNum(right, e.Pos, "/")
		if divisor == 0 {
			panic(newError(TypeError, e.Pos, "division by zero"))
		}
		return str(p.numToStr(p.toNum(left, e.Pos, "/") / divisor))
	case MOD:
		divisor := p.toNum(right, e.Pos, "%")
		if divisor == 0 {
			panic(newError(TypeError, e.Pos, "division by zero in %%"))
		}
		return str(p.numToStr(math.Mod(p.toNum(left, e.Pos, "%"), divisor)))
	case POW:
		return str(p.numToStr(math.Pow(p.toNum(left, e.Pos, "^"), p.toNum(right, e.Pos, "^"))))
	case CONCAT:
		return str(p.toStr(left, e.Pos) + p.toStr(right, e.Pos))
	case EQUALS:
		return boolean(p.compare(left, right, e.Pos) == 0)
	case NOT_EQUALS:
		return boolean(p.compare(left, right, e.Pos) != 0)
	case LESS:
		return boolean(p.compare(left, right, e.Pos) < 0)
	case LTE:
		return boolean(p.compare(left, right, e.Pos) <= 0)
	case GREATER:
		return boolean(p.compare(left, right, e.Pos) > 0)
	case GTE:
		return boolean(p.compare(left, right, e.Pos) >= 0)
	default:
		panic(fmt.Sprintf("unexpected binary operation: %s", e.Op))
	}
}

// compare returns -1, 0 or 1. If both operands parse fully as numbers
// the comparison is numeric, otherwise lexicographic. Values carry no
// string/number provenance, so "10" < "9" is false just as 10 < 9 is.
func (p *Interp) compare(left, right value, pos Position) int {
	l := p.toStr(left, pos)
	r := p.toStr(right, pos)
	ln, lok := parseNum(l)
	rn, rok := parseNum(r)
	if lok && rok {
		switch {
		case ln < rn:
			return -1
		case ln > rn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(l, r)
}

func (p *Interp) evalIn(e *parser.InExpr) value {
	arr := p.arrayFor(e.Array, false, e.Pos)
	if arr == nil {
		return boolean(false)
	}
	for i, index := range e.Index {
		key := arrayKey(p.eval(index))
		if i == len(e.Index)-1 {
			_, ok := arr[key]
			return boolean(ok)
		}
		elem, ok := arr[key]
		if !ok || !elem.isArr {
			return boolean(false)
		}
		arr = elem.m
	}
	return boolean(false)
}

func (p *Interp) evalAssign(e *parser.AssignExpr) value {
	right := p.eval(e.Right)
	if e.Op != ASSIGN {
		left := p.eval(e.Left)
		var result float64
		l := p.toNum(left, e.Pos, e.Op.String())
		r := p.toNum(right, e.Pos, e.Op.String())
		switch e.Op {
		case ADD_ASSIGN:
			result = l + r
		case SUB_ASSIGN:
			result = l - r
		case MUL_ASSIGN:
			result = l * r
		case DIV_ASSIGN:
			if r == 0 {
				panic(newError(TypeError, e.Pos, "division by zero"))
			}
			result = l / r
		case MOD_ASSIGN:
			if r == 0 {
				panic(newError(TypeError, e.Pos, "division by zero in %%"))
			}
			result = math.Mod(l, r)
		case POW_ASSIGN:
			result = math.Pow(l, r)
		default:
			panic(fmt.Sprintf("unexpected assignment operator: %s", e.Op))
		}
		right = str(p.numToStr(result))
	}
	p.assign(e.Left, right)
	return right
}

// evalIncr handles ++ and --: strict numeric on the bound value,
// write back, return the original value for post-forms and the new
// value for pre-forms.
func (p *Interp) evalIncr(e *parser.IncrExpr) value {
	oldNum := p.toNum(p.eval(e.Left), e.Pos, e.Op.String())
	newNum := oldNum - 1
	if e.Op == INCR {
		newNum = oldNum + 1
	}
	newValue := str(p.numToStr(newNum))
	p.assign(e.Left, newValue)
	if e.Pre {
		return newValue
	}
	return str(p.numToStr(oldNum))
}

// assign writes a value through an lvalue: a variable, an array
// element (creating intermediate dimensions as needed), or a field.
func (p *Interp) assign(left parser.Expr, v value) {
	switch left := left.(type) {
	case *parser.VarExpr:
		p.assignVar(left.Name, v, left.Pos)
	case *parser.IndexExpr:
		p.assignArrayElem(left, v)
	case *parser.FieldExpr:
		index := p.fieldIndex(p.eval(left.Index), left.Pos)
		p.editField(index, p.toStr(v, left.Pos), left.Pos)
	default:
		panic(fmt.Sprintf("unexpected lvalue type: %T", left))
	}
}

// getVar resolves a name: call locals first, then the well-known
// variables, then globals. An unset name reads as the empty scalar.
func (p *Interp) getVar(name string) value {
	if p.locals != nil {
		if v, ok := p.locals[name]; ok {
			return v
		}
	}
	switch name {
	case "FS":
		return str(p.fieldSep)
	case "OFS":
		return str(p.outputFieldSep)
	case "OFMT":
		return str(p.outputFormat)
	case "NR":
		return str(strconv.Itoa(p.man.lineNum))
	case "FNR":
		return str(strconv.Itoa(p.man.fileLineNum))
	case "NF":
		return str(strconv.Itoa(len(p.man.fields)))
	case "FILENAME":
		return str(p.man.filename)
	}
	if v, ok := p.globals[name]; ok {
		return v
	}
	return str("")
}

// assignVar binds a name in the scope that already holds it; a new
// name goes to locals inside a function call, else to globals.
// Rebinding a scalar name to an array or vice versa is a TypeError.
func (p *Interp) assignVar(name string, v value, pos Position) {
	if p.locals != nil {
		if old, ok := p.locals[name]; ok {
			p.checkVariant(old, v, name, pos)
			p.locals[name] = v
			return
		}
	}
	if isSpecial(name) {
		if v.isArr {
			panic(newError(TypeError, pos, "cannot assign array to %q", name))
		}
		p.setSpecial(name, v.s, pos)
		return
	}
	if old, ok := p.globals[name]; ok {
		p.checkVariant(old, v, name, pos)
		p.globals[name] = v
		return
	}
	if p.locals != nil {
		p.locals[name] = v
	} else {
		p.globals[name] = v
	}
}

func (p *Interp) checkVariant(old, v value, name string, pos Position) {
	if old.isArr != v.isArr {
		if old.isArr {
			panic(newError(TypeError, pos, "cannot assign scalar to array %q", name))
		}
		panic(newError(TypeError, pos, "cannot assign array to scalar %q", name))
	}
}

func isSpecial(name string) bool {
	switch name {
	case "FS", "OFS", "OFMT", "NR", "FNR", "NF", "FILENAME":
		return true
	}
	return false
}

func (p *Interp) setSpecial(name, s string, pos Position) {
	switch name {
	case "FS":
		p.fieldSep = s
	case "OFS":
		p.outputFieldSep = s
	case "OFMT":
		p.outputFormat = s
	case "NR":
		p.man.lineNum = int(numPrefix(s))
	case "FNR":
		p.man.fileLineNum = int(numPrefix(s))
	case "NF":
		n, ok := parseNum(s)
		if !ok {
			panic(newError(TypeError, pos, "NF must be numeric, not %q", s))
		}
		p.setNumFields(int(n), pos)
	case "FILENAME":
		p.man.filename = s
	}
}

// arrayFor resolves a name to its array storage, checking locals then
// globals. With create set, an unset name is bound to a fresh array
// in the scope new names go to; otherwise nil is returned. A name
// bound to a scalar is a TypeError either way.
func (p *Interp) arrayFor(name string, create bool, pos Position) map[string]value {
	if p.locals != nil {
		if v, ok := p.locals[name]; ok {
			if !v.isArr {
				panic(newError(TypeError, pos, "cannot use scalar %q as array", name))
			}
			return v.m
		}
	}
	if isSpecial(name) {
		panic(newError(TypeError, pos, "cannot use scalar %q as array", name))
	}
	if v, ok := p.globals[name]; ok {
		if !v.isArr {
			panic(newError(TypeError, pos, "cannot use scalar %q as array", name))
		}
		return v.m
	}
	if !create {
		return nil
	}
	a := newArray()
	if p.locals != nil {
		p.locals[name] = a
	} else {
		p.globals[name] = a
	}
	return a.m
}

// getArrayElem reads through an index chain. Reads don't create
// elements: a missing element at any depth is the empty scalar, so
// membership tests still reflect only prior assignments.
func (p *Interp) getArrayElem(e *parser.IndexExpr) value {
	arr := p.arrayFor(e.Name, false, e.Pos)
	if arr == nil {
		return str("")
	}
	for i, index := range e.Index {
		key := arrayKey(p.eval(index))
		elem, ok := arr[key]
		if i == len(e.Index)-1 {
			if !ok {
				return str("")
			}
			return elem
		}
		if !ok {
			return str("")
		}
		if !elem.isArr {
			panic(newError(TypeError, e.Pos, "cannot use scalar element as array in %q", e.Name))
		}
		arr = elem.m
	}
	return str("")
}

// assignArrayElem writes through an index chain, creating
// intermediate array dimensions as needed.
func (p *Interp) assignArrayElem(e *parser.IndexExpr, v value) {
	arr := p.arrayFor(e.Name, true, e.Pos)
	for i, index := range e.Index {
		key := arrayKey(p.eval(index))
		if i == len(e.Index)-1 {
			if old, ok := arr[key]; ok {
				p.checkVariant(old, v, e.Name, e.Pos)
			}
			arr[key] = v
			return
		}
		elem, ok := arr[key]
		if !ok {
			elem = newArray()
			arr[key] = elem
		} else if !elem.isArr {
			panic(newError(TypeError, e.Pos, "cannot use scalar element as array in %q", e.Name))
		}
		arr = elem.m
	}
}

// call dispatches a function call by name: user definitions shadow
// builtins, anything else is undefined.
func (p *Interp) call(e *parser.CallExpr) value {
	if f, ok := p.program.Functions[e.Name]; ok {
		return p.callUser(f, e)
	}
	if b, ok := p.builtins[e.Name]; ok {
		return p.callBuiltin(b, e)
	}
	panic(newError(ProgramError, e.Pos, "function %q not defined", e.Name))
}

// callUser binds arguments positionally into a fresh local scope and
// runs the function body. The caller must supply at least as many
// arguments as declared parameters; surplus arguments are collected
// into a local array named after the function, indexed "1".."N".
func (p *Interp) callUser(f *parser.Function, call *parser.CallExpr) value {
	if len(call.Args) < len(f.Params) {
		panic(newError(ArgumentError, call.Pos, "too few arguments for %q: got %d, want %d",
			f.Name, len(call.Args), len(f.Params)))
	}
	locals := make(map[string]value, len(f.Params)+1)
	for i, param := range f.Params {
		locals[param] = p.eval(call.Args[i])
	}
	if len(call.Args) > len(f.Params) {
		surplus := newArray()
		for i, arg := range call.Args[len(f.Params):] {
			surplus.m[strconv.Itoa(i+1)] = p.eval(arg)
		}
		locals[f.Name] = surplus
	}

	oldLocals := p.locals
	p.locals = locals
	err := p.executes(f.Body)
	p.locals = oldLocals

	switch e := err.(type) {
	case nil:
		return str("")
	case returnValue:
		return e.value
	case loopSignal:
		panic(newError(ProgramError, e.pos, "cannot use %s outside of a loop, in function %q", e.op, f.Name))
	default:
		// A next signal or nested error propagates out of the call
		panic(err)
	}
}

// regexpArg compiles the right operand of ~ or !~, or a builtin regex
// parameter: a regex literal uses its pattern text directly, anything
// else is coerced to a string and compiled.
func (p *Interp) regexpArg(expr parser.Expr, pos Position) *regexp.Regexp {
	if re, ok := expr.(*parser.RegExpr); ok {
		return p.mustCompile(re.Regex, re.Pos)
	}
	return p.mustCompile(p.toStr(p.eval(expr), pos), pos)
}

func (p *Interp) mustCompile(pattern string, pos Position) *regexp.Regexp {
	if re, ok := p.regexCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		panic(newError(TypeError, pos, "invalid regex %q: %s", pattern, err))
	}
	// Dumb, non-LRU cache: just cache the first N regexes
	if len(p.regexCache) < maxCachedRegexes {
		p.regexCache[pattern] = re
	}
	return re
}

// toStr returns the canonical form of a scalar; arrays have none.
func (p *Interp) toStr(v value, pos Position) string {
	if v.isArr {
		panic(newError(TypeError, pos, "cannot use array in scalar context"))
	}
	return v.s
}

// toNum is the strict numeric coercion used by arithmetic operators:
// the whole string must parse as a number, except that the empty
// scalar counts as 0 (so unset variables increment from zero).
func (p *Interp) toNum(v value, pos Position, op string) float64 {
	s := p.toStr(v, pos)
	if strings.TrimSpace(s) == "" {
		return 0
	}
	n, ok := parseNum(s)
	if !ok {
		panic(newError(TypeError, pos, "%s requires numeric operand, got %q", op, s))
	}
	return n
}

// numToStr is the canonical form of a numeric result: integral
// values print as integers, others through OFMT.
func (p *Interp) numToStr(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return fmt.Sprintf(p.outputFormat, n)
}

// fieldIndex coerces a field reference index to an integer by
// truncation.
func (p *Interp) fieldIndex(v value, pos Position) int {
	s := p.toStr(v, pos)
	n, ok := parseNum(s)
	if !ok {
		panic(newError(TypeError, pos, "field index must be numeric, got %q", s))
	}
	return int(n)
}
