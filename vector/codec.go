package vector

import (
	"strconv"
	"strings"
)

// Codec parses and formats textual vector literals such as "[1,2,3]".
type Codec struct {
	// AllowNonFinite accepts NaN and Inf components. They are rejected by
	// default.
	AllowNonFinite bool
}

var defaultCodec = Codec{}

// Construct parses text with the default codec.
func Construct(text string) (Vector, error) { return defaultCodec.Construct(text) }

// Serialize formats v as a canonical literal: "[c1,c2,...]" with the
// shortest float32 representation of each component.
func Serialize(v Vector) string {
	var sb strings.Builder
	sb.Grow(len(v)*8 + 2)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Format renders v for display with the given number of significant digits,
// separating components with ", ". A non-positive precision uses the
// shortest exact representation.
func Format(v Vector, precision int) string {
	if precision <= 0 {
		precision = -1
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'g', precision, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// IsValid reports whether text parses and has exactly expectedDim
// components. It never fails.
func IsValid(text string, expectedDim int) bool {
	v, err := Construct(text)
	return err == nil && len(v) == expectedDim
}

var closers = map[byte]byte{'[': ']', '{': '}', '(': ')'}

// Construct parses a bracketed, comma-separated list of numeric literals.
// "[...]", "{...}" and "(...)" are accepted. Failures are *ParseError with
// the byte offset of the offending input.
func (c Codec) Construct(text string) (Vector, error) {
	p := parser{text: text}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("empty input")
	}
	closer, ok := closers[p.peek()]
	if !ok {
		return nil, p.fail("expected '['")
	}
	p.pos++

	var out Vector
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.fail("unterminated vector, expected '" + string(closer) + "'")
		}
		if p.peek() == closer {
			if len(out) == 0 {
				return nil, p.fail("vector has no components")
			}
			return nil, p.fail("expected number after ','")
		}
		start := p.pos
		tok := p.token()
		if tok == "" {
			return nil, p.fail("expected number")
		}
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, &ParseError{Pos: start, Msg: "invalid number " + strconv.Quote(tok)}
		}
		if !c.AllowNonFinite && !isFinite(float32(f)) {
			return nil, &ParseError{Pos: start, Msg: "non-finite number " + strconv.Quote(tok)}
		}
		out = append(out, float32(f))

		p.skipSpace()
		if p.eof() {
			return nil, p.fail("unterminated vector, expected '" + string(closer) + "'")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case closer:
			p.pos++
			p.skipSpace()
			if !p.eof() {
				return nil, p.fail("unexpected trailing input")
			}
			return out, nil
		default:
			return nil, p.fail("expected ',' or '" + string(closer) + "'")
		}
	}
}

type parser struct {
	text string
	pos  int
}

func (p *parser) eof() bool  { return p.pos >= len(p.text) }
func (p *parser) peek() byte { return p.text[p.pos] }

func (p *parser) fail(msg string) *ParseError { return &ParseError{Pos: p.pos, Msg: msg} }

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// token consumes characters up to the next separator, bracket or space.
func (p *parser) token() string {
	start := p.pos
	for !p.eof() {
		switch p.peek() {
		case ',', ']', '}', ')', ' ', '\t', '\n', '\r':
			return p.text[start:p.pos]
		}
		p.pos++
	}
	return p.text[start:p.pos]
}
