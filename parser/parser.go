// AWK parser.
package parser

import (
	"fmt"

	. "github.com/meefbo/AWK-Interpreter/lexer"
)

// ParseError (actually *ParseError) is returned by ParseProgram when
// the source doesn't parse.
type ParseError struct {
	Position Position
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Position.Line, e.Position.Column, e.Message)
}

// ParseProgram parses an entire AWK program from source.
func ParseProgram(src []byte) (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			// Convert to ParseError or re-panic
			err = r.(*ParseError)
		}
	}()
	lexer := NewLexer(src)
	p := &parser{lexer: lexer}
	p.next()
	return p.program(), nil
}

type parser struct {
	lexer   *Lexer
	pos     Position
	tok     Token
	val     string
	prevTok Token
}

// program parses a sequence of items: function definitions, BEGIN and
// END blocks, and pattern/action blocks.
func (p *parser) program() *Program {
	prog := &Program{Functions: make(map[string]*Function)}
	p.optionalNewlines()
	for p.tok != EOF {
		switch p.tok {
		case BEGIN:
			p.next()
			prog.Begin = append(prog.Begin, p.stmtsBrace())
		case END:
			p.next()
			prog.End = append(prog.End, p.stmtsBrace())
		case FUNCTION:
			function := p.function()
			if _, ok := prog.Functions[function.Name]; ok {
				panic(p.error("function %q already defined", function.Name))
			}
			prog.Functions[function.Name] = function
		default:
			// Pattern/action block: one of pattern-only, action-only,
			// or pattern + action.
			action := Action{}
			if p.tok != LBRACE {
				action.Pattern = p.pattern()
			}
			if p.tok == LBRACE {
				action.Stmts = p.stmtsBrace()
			} else if action.Pattern == nil {
				panic(p.error("expected pattern or { action }"))
			}
			prog.Actions = append(prog.Actions, action)
		}
		p.optionalNewlines()
	}
	return prog
}

// pattern parses a block predicate. A bare regex is rewritten to a
// match against the whole record.
func (p *parser) pattern() Expr {
	pos := p.pos
	if p.tok == DIV || p.tok == DIV_ASSIGN {
		regex := p.regexLiteral()
		return &BinaryExpr{
			Pos:   pos,
			Left:  &FieldExpr{Pos: pos, Index: &NumExpr{Pos: pos, Value: "0"}},
			Op:    MATCH,
			Right: regex,
		}
	}
	return p.expr()
}

func (p *parser) function() *Function {
	pos := p.pos
	p.next()
	name := p.val
	p.expect(NAME)
	p.expect(LPAREN)
	params := []string{}
	for p.tok != RPAREN {
		param := p.val
		p.expect(NAME)
		params = append(params, param)
		if p.tok == COMMA {
			p.next()
			p.optionalNewlines()
		} else if p.tok != RPAREN {
			panic(p.error("expected , or ) instead of %s", p.tok))
		}
	}
	p.expect(RPAREN)
	p.optionalNewlines()
	body := p.stmtsBrace()
	return &Function{Pos: pos, Name: name, Params: params, Body: body}
}

// stmtsBrace parses a brace-delimited statement list.
func (p *parser) stmtsBrace() Stmts {
	p.expect(LBRACE)
	p.optionalNewlines()
	ss := Stmts{}
	for p.tok != RBRACE && p.tok != EOF {
		ss = append(ss, p.stmt())
	}
	p.expect(RBRACE)
	return ss
}

// stmts parses either a single statement or a brace-delimited list,
// for loop and if bodies.
func (p *parser) stmts() Stmts {
	if p.tok == LBRACE {
		return p.stmtsBrace()
	}
	return Stmts{p.stmt()}
}

func (p *parser) stmt() Stmt {
	s := p.stmtInner()
	// Statements are separated by ; or newline; a closing brace ends
	// a statement on its own, as in "while (c) { ... } print x", and
	// so does a separator already consumed by a nested body, as in
	// "if (c) next; print x"
	switch p.tok {
	case NEWLINE, SEMICOLON:
		p.next()
		p.optionalNewlines()
	case RBRACE, EOF:
	default:
		if p.prevTok != RBRACE && p.prevTok != SEMICOLON && p.prevTok != NEWLINE {
			panic(p.error("expected ; or newline between statements instead of %s", p.tok))
		}
	}
	return s
}

func (p *parser) stmtInner() Stmt {
	pos := p.pos
	switch p.tok {
	case PRINT:
		p.next()
		return &PrintStmt{Pos: pos, Args: p.exprListOpt()}
	case PRINTF:
		p.next()
		args := p.exprListOpt()
		if len(args) == 0 {
			panic(p.error("expected printf args, got none"))
		}
		return &PrintfStmt{Pos: pos, Args: args}
	case IF:
		p.next()
		p.expect(LPAREN)
		cond := p.expr()
		p.expect(RPAREN)
		p.optionalNewlines()
		body := p.stmts()
		p.optionalNewlines()
		var elseBody Stmts
		if p.tok == ELSE {
			p.next()
			p.optionalNewlines()
			elseBody = p.stmts()
		}
		return &IfStmt{Pos: pos, Cond: cond, Body: body, Else: elseBody}
	case WHILE:
		p.next()
		p.expect(LPAREN)
		cond := p.expr()
		p.expect(RPAREN)
		p.optionalNewlines()
		return &WhileStmt{Pos: pos, Cond: cond, Body: p.stmts()}
	case DO:
		p.next()
		p.optionalNewlines()
		body := p.stmts()
		p.optionalNewlines()
		p.expect(WHILE)
		p.expect(LPAREN)
		cond := p.expr()
		p.expect(RPAREN)
		return &DoWhileStmt{Pos: pos, Body: body, Cond: cond}
	case FOR:
		p.next()
		p.expect(LPAREN)
		if p.tok == NAME && p.peek() == IN {
			varName := p.val
			p.next()
			p.next()
			arrayName := p.val
			p.expect(NAME)
			p.expect(RPAREN)
			p.optionalNewlines()
			return &ForInStmt{Pos: pos, Var: varName, Array: arrayName, Body: p.stmts()}
		}
		var pre Stmt
		if p.tok != SEMICOLON {
			pre = &ExprStmt{Pos: p.pos, Expr: p.expr()}
		}
		p.expect(SEMICOLON)
		var cond Expr
		if p.tok != SEMICOLON {
			cond = p.expr()
		}
		p.expect(SEMICOLON)
		var post Stmt
		if p.tok != RPAREN {
			post = &ExprStmt{Pos: p.pos, Expr: p.expr()}
		}
		p.expect(RPAREN)
		// Skip newlines only: a ';' here is an empty loop body
		for p.tok == NEWLINE {
			p.next()
		}
		return &ForStmt{Pos: pos, Pre: pre, Cond: cond, Post: post, Body: p.stmts()}
	case BREAK:
		p.next()
		return &BreakStmt{Pos: pos}
	case CONTINUE:
		p.next()
		return &ContinueStmt{Pos: pos}
	case NEXT:
		p.next()
		return &NextStmt{Pos: pos}
	case DELETE:
		p.next()
		name := p.val
		p.expect(NAME)
		var index []Expr
		if p.tok == LBRACKET {
			p.next()
			index = p.exprList()
			p.expect(RBRACKET)
		}
		return &DeleteStmt{Pos: pos, Array: name, Index: index}
	case RETURN:
		p.next()
		var value Expr
		switch p.tok {
		case NEWLINE, SEMICOLON, RBRACE, EOF:
		default:
			value = p.expr()
		}
		return &ReturnStmt{Pos: pos, Value: value}
	case SEMICOLON:
		// Empty statement, e.g. "for (...) ;"
		return &ExprStmt{Pos: pos, Expr: &NumExpr{Pos: pos, Value: "1"}}
	default:
		return &ExprStmt{Pos: pos, Expr: p.expr()}
	}
}

// exprListOpt parses a possibly-empty comma-separated expression
// list, stopping at a statement boundary.
func (p *parser) exprListOpt() []Expr {
	switch p.tok {
	case NEWLINE, SEMICOLON, RBRACE, EOF:
		return nil
	}
	return p.exprList()
}

func (p *parser) exprList() []Expr {
	exprs := []Expr{p.expr()}
	for p.tok == COMMA {
		p.next()
		p.optionalNewlines()
		exprs = append(exprs, p.expr())
	}
	return exprs
}

// expr parses an expression. Precedence from loosest to tightest:
// assignment, ternary, ||, &&, in, ~, comparison, concatenation,
// + -, * / %, unary, ^, ++ -- and grouping.
func (p *parser) expr() Expr {
	return p.assign()
}

func (p *parser) assign() Expr {
	left := p.ternary()
	switch p.tok {
	case ASSIGN, ADD_ASSIGN, SUB_ASSIGN, MUL_ASSIGN, DIV_ASSIGN, MOD_ASSIGN, POW_ASSIGN:
		if !IsLValue(left) {
			panic(p.error("expected assignable target on left side of %s", p.tok))
		}
		pos := p.pos
		op := p.tok
		p.next()
		p.optionalNewlines()
		right := p.assign()
		return &AssignExpr{Pos: pos, Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) ternary() Expr {
	cond := p.or()
	if p.tok == QUESTION {
		pos := p.pos
		p.next()
		p.optionalNewlines()
		trueValue := p.ternary()
		p.expect(COLON)
		p.optionalNewlines()
		falseValue := p.ternary()
		return &CondExpr{Pos: pos, Cond: cond, True: trueValue, False: falseValue}
	}
	return cond
}

func (p *parser) or() Expr {
	left := p.and()
	for p.tok == OR {
		pos := p.pos
		p.next()
		p.optionalNewlines()
		left = &BinaryExpr{Pos: pos, Left: left, Op: OR, Right: p.and()}
	}
	return left
}

func (p *parser) and() Expr {
	left := p.inExpr()
	for p.tok == AND {
		pos := p.pos
		p.next()
		p.optionalNewlines()
		left = &BinaryExpr{Pos: pos, Left: left, Op: AND, Right: p.inExpr()}
	}
	return left
}

func (p *parser) inExpr() Expr {
	left := p.match()
	for p.tok == IN {
		pos := p.pos
		p.next()
		arrayName := p.val
		p.expect(NAME)
		left = &InExpr{Pos: pos, Index: []Expr{left}, Array: arrayName}
	}
	return left
}

func (p *parser) match() Expr {
	left := p.compare()
	for p.tok == MATCH || p.tok == NOT_MATCH {
		pos := p.pos
		op := p.tok
		p.next()
		var right Expr
		if p.tok == DIV || p.tok == DIV_ASSIGN {
			right = p.regexLiteral()
		} else {
			right = p.compare()
		}
		left = &BinaryExpr{Pos: pos, Left: left, Op: op, Right: right}
	}
	return left
}

func (p *parser) compare() Expr {
	left := p.concat()
	switch p.tok {
	case EQUALS, NOT_EQUALS, LESS, LTE, GREATER, GTE:
		pos := p.pos
		op := p.tok
		p.next()
		return &BinaryExpr{Pos: pos, Left: left, Op: op, Right: p.concat()}
	}
	return left
}

func (p *parser) concat() Expr {
	left := p.add()
	for p.concatNext() {
		left = &BinaryExpr{Pos: left.Position(), Left: left, Op: CONCAT, Right: p.add()}
	}
	return left
}

// concatNext reports whether the current token can begin the right
// side of a string concatenation.
func (p *parser) concatNext() bool {
	switch p.tok {
	case NUMBER, STRING, NAME, DOLLAR, NOT, LPAREN, INCR, DECR, GETLINE:
		return true
	default:
		return false
	}
}

func (p *parser) add() Expr {
	left := p.mul()
	for p.tok == ADD || p.tok == SUB {
		pos := p.pos
		op := p.tok
		p.next()
		left = &BinaryExpr{Pos: pos, Left: left, Op: op, Right: p.mul()}
	}
	return left
}

func (p *parser) mul() Expr {
	left := p.unary()
	for p.tok == MUL || p.tok == DIV || p.tok == MOD {
		pos := p.pos
		op := p.tok
		p.next()
		left = &BinaryExpr{Pos: pos, Left: left, Op: op, Right: p.unary()}
	}
	return left
}

func (p *parser) unary() Expr {
	switch p.tok {
	case NOT, SUB, ADD:
		pos := p.pos
		op := p.tok
		p.next()
		return &UnaryExpr{Pos: pos, Op: op, Value: p.unary()}
	default:
		return p.power()
	}
}

// power handles ^, which binds tighter than unary minus on the left
// and is right-associative: -2^2 is -(2^2) and 2^3^2 is 2^(3^2).
func (p *parser) power() Expr {
	left := p.postfix()
	if p.tok == POW {
		pos := p.pos
		p.next()
		return &BinaryExpr{Pos: pos, Left: left, Op: POW, Right: p.unary()}
	}
	return left
}

func (p *parser) postfix() Expr {
	expr := p.primary()
	if (p.tok == INCR || p.tok == DECR) && IsLValue(expr) {
		pos := p.pos
		op := p.tok
		p.next()
		return &IncrExpr{Pos: pos, Left: expr, Op: op, Pre: false}
	}
	return expr
}

func (p *parser) primary() Expr {
	pos := p.pos
	switch p.tok {
	case NUMBER:
		value := p.val
		p.next()
		return &NumExpr{Pos: pos, Value: value}
	case STRING:
		value := p.val
		p.next()
		return &StrExpr{Pos: pos, Value: value}
	case DIV, DIV_ASSIGN:
		return p.regexLiteral()
	case DOLLAR:
		p.next()
		return &FieldExpr{Pos: pos, Index: p.primary()}
	case INCR, DECR:
		op := p.tok
		p.next()
		target := p.primary()
		if !IsLValue(target) {
			panic(p.error("expected assignable target after %s", op))
		}
		return &IncrExpr{Pos: pos, Left: target, Op: op, Pre: true}
	case GETLINE:
		p.next()
		var args []Expr
		if p.tok == NAME {
			name := p.val
			namePos := p.pos
			p.next()
			args = append(args, &VarExpr{Pos: namePos, Name: name})
		}
		return &CallExpr{Pos: pos, Name: "getline", Args: args}
	case NAME:
		name := p.val
		p.next()
		switch p.tok {
		case LBRACKET:
			// a[i, j] and a[i][j] both walk nested dimensions
			var index []Expr
			for p.tok == LBRACKET {
				p.next()
				index = append(index, p.exprList()...)
				p.expect(RBRACKET)
			}
			return &IndexExpr{Pos: pos, Name: name, Index: index}
		case LPAREN:
			p.next()
			p.optionalNewlines()
			var args []Expr
			if p.tok != RPAREN {
				args = p.exprList()
			}
			p.expect(RPAREN)
			return &CallExpr{Pos: pos, Name: name, Args: args}
		default:
			return &VarExpr{Pos: pos, Name: name}
		}
	case LPAREN:
		p.next()
		exprs := p.exprList()
		p.expect(RPAREN)
		if len(exprs) == 1 {
			return exprs[0]
		}
		// Multiple parenthesized expressions are only valid as a
		// multidimensional membership test: (i, j) in array
		if p.tok != IN {
			panic(p.error("expected 'in' after parenthesized expression list"))
		}
		inPos := p.pos
		p.next()
		arrayName := p.val
		p.expect(NAME)
		return &InExpr{Pos: inPos, Index: exprs, Array: arrayName}
	default:
		panic(p.error("expected expression instead of %s", p.tok))
	}
}

// regexLiteral rescans the current '/' token as a regex literal.
func (p *parser) regexLiteral() Expr {
	prev := p.tok
	pos, tok, val := p.lexer.ScanRegex()
	if tok == ILLEGAL {
		panic(&ParseError{Position: pos, Message: val})
	}
	if prev == DIV_ASSIGN {
		// The lexer consumed "/=" before we knew a regex was allowed
		// here; the '=' belongs to the pattern.
		val = "=" + val
	}
	p.next()
	return &RegExpr{Pos: pos, Regex: val}
}

func (p *parser) optionalNewlines() {
	for p.tok == NEWLINE || p.tok == SEMICOLON {
		p.next()
	}
}

// peek returns the next token without consuming the current one.
func (p *parser) peek() Token {
	save := *p.lexer
	_, tok, _ := p.lexer.Scan()
	*p.lexer = save
	return tok
}

func (p *parser) next() {
	p.prevTok = p.tok
	p.pos, p.tok, p.val = p.lexer.Scan()
	if p.tok == ILLEGAL {
		panic(p.error("%s", p.val))
	}
}

func (p *parser) expect(tok Token) {
	if p.tok != tok {
		panic(p.error("expected %s instead of %s", tok, p.tok))
	}
	p.next()
}

func (p *parser) error(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	return &ParseError{Position: p.pos, Message: message}
}
