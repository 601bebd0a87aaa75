package formula

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenLParen
	tokenRParen
	tokenComma
	tokenLT
	tokenLE
	tokenGT
	tokenGE
	tokenEQ
	tokenNE
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, *SyntaxError) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch c {
	case '+':
		l.pos++
		return token{tokenPlus, "+", start}, nil
	case '-':
		l.pos++
		return token{tokenMinus, "-", start}, nil
	case '*':
		l.pos++
		return token{tokenStar, "*", start}, nil
	case '/':
		l.pos++
		return token{tokenSlash, "/", start}, nil
	case '(':
		l.pos++
		return token{tokenLParen, "(", start}, nil
	case ')':
		l.pos++
		return token{tokenRParen, ")", start}, nil
	case ',':
		l.pos++
		return token{tokenComma, ",", start}, nil
	case '<':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{tokenLE, "<=", start}, nil
		}
		return token{tokenLT, "<", start}, nil
	case '>':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{tokenGE, ">=", start}, nil
		}
		return token{tokenGT, ">", start}, nil
	case '=':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{tokenEQ, "==", start}, nil
		}
		return token{}, &SyntaxError{Pos: start, Message: "expected '==', found '='"}
	case '!':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{tokenNE, "!=", start}, nil
		}
		return token{}, &SyntaxError{Pos: start, Message: "expected '!=', found '!'"}
	}

	if isDigit(c) || c == '.' {
		sawDot := false
		for l.pos < len(l.src) {
			ch := l.src[l.pos]
			if ch == '.' {
				if sawDot {
					return token{}, &SyntaxError{Pos: l.pos, Message: "malformed number"}
				}
				sawDot = true
				l.pos++
				continue
			}
			if !isDigit(ch) {
				break
			}
			l.pos++
		}
		text := l.src[start:l.pos]
		if text == "." {
			return token{}, &SyntaxError{Pos: start, Message: "malformed number"}
		}
		return token{tokenNumber, text, start}, nil
	}

	if isIdentStart(c) {
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{tokenIdent, strings.ToLower(l.src[start:l.pos]), start}, nil
	}

	return token{}, &SyntaxError{Pos: start, Message: "unexpected character " + string(rune(c))}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
