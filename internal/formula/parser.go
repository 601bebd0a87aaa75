package formula

import "github.com/shopspring/decimal"

// Grammar, lowest precedence first:
//
//	comparison = additive (("<" | "<=" | ">" | ">=" | "==" | "!=") additive)?
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/") unary)*
//	unary      = "-" unary | primary
//	primary    = NUMBER | IDENT | IDENT "(" args ")" | "(" comparison ")"
type parser struct {
	lex  *lexer
	cur  token
	peek *token
}

// Parse compiles an expression string into an immutable AST.
func Parse(src string) (Expr, error) {
	p := &parser{lex: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokenEOF {
		return nil, &SyntaxError{Pos: p.cur.pos, Message: "unexpected token " + p.cur.text}
	}
	return expr, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) peekToken() (token, error) {
	if p.peek == nil {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &tok
	}
	return *p.peek, nil
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch p.cur.kind {
	case tokenLT, tokenLE, tokenGT, tokenGE, tokenEQ, tokenNE:
		op, pos := p.cur.kind, p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryExpr{op: op, left: left, right: right, pos: pos}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenPlus || p.cur.kind == tokenMinus {
		op, pos := p.cur.kind, p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right, pos: pos}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenStar || p.cur.kind == tokenSlash {
		op, pos := p.cur.kind, p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: op, left: left, right: right, pos: pos}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur.kind == tokenMinus {
		pos := p.cur.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryExpr{
			op:    tokenMinus,
			left:  numberExpr{value: decimal.Zero},
			right: operand,
			pos:   pos,
		}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.cur.kind {
	case tokenNumber:
		value, err := decimal.NewFromString(p.cur.text)
		if err != nil {
			return nil, &SyntaxError{Pos: p.cur.pos, Message: "malformed number " + p.cur.text}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numberExpr{value: value}, nil

	case tokenIdent:
		name, pos := p.cur.text, p.cur.pos
		next, err := p.peekToken()
		if err != nil {
			return nil, err
		}
		if next.kind == tokenLParen {
			return p.parseCall(name, pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return identExpr{name: name, pos: pos}, nil

	case tokenLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokenRParen {
			return nil, &SyntaxError{Pos: p.cur.pos, Message: "expected ')'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case tokenEOF:
		return nil, &SyntaxError{Pos: p.cur.pos, Message: "unexpected end of expression"}
	}
	return nil, &SyntaxError{Pos: p.cur.pos, Message: "unexpected token " + p.cur.text}
}

func (p *parser) parseCall(name string, pos int) (Expr, error) {
	spec, ok := functions[name]
	if !ok {
		return nil, &SyntaxError{Pos: pos, Message: "unknown function " + name}
	}

	// consume IDENT then '('
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var args []Expr
	if p.cur.kind != tokenRParen {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.kind != tokenComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.cur.kind != tokenRParen {
		return nil, &SyntaxError{Pos: p.cur.pos, Message: "expected ')' closing call to " + name}
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if len(args) != spec.arity {
		return nil, &SyntaxError{Pos: pos, Message: name + " expects a fixed argument count"}
	}
	return callExpr{fn: name, args: args, pos: pos}, nil
}
