package json

// Parser states. Mirrors the pushdown automaton described in spec §4.A:
// idle, number (with sign/pre-dot/leading-zero/dot/post-dot/exponent/
// exponent-sign/exponent-value sub-states), object (left-brace/
// member-name-parsed/member-value-parsed), array (left-bracket/
// value-parsed), string (body/after-backslash/unicode-hex-N), and the
// true/false/null literals.
type state int

const (
	idleParsing state = 0

	startNumberParsing state = 100
	signParsed         state = 101
	preDotParsed       state = 102
	leadingZeroParsed  state = 103
	dotParsed          state = 104
	postDotParsed      state = 105
	exponentParsed     state = 106
	exponentSignParsed state = 107
	exponentValueParsed state = 108

	startObjectParsing state = 200
	leftBraceParsed    state = 201
	memberNameParsed   state = 202
	memberValueParsed  state = 203

	startArrayParsing state = 300
	leftBracketParsed state = 301
	arrayValueParsed  state = 302

	startStringParsing   state = 400
	stringParsing        state = 401
	reverseSolidusParsed state = 402
	unicodeMarkerParse   state = 403 // + 0..3 for each hex digit consumed

	startTrueParsing  state = 500
	startFalseParsing state = 600
	startNullParsing  state = 700
)

func mainState(s state) state { return s - (s % 100) }

// arrayBuilder/objectBuilder hold the in-progress container while its
// children are still being parsed; they are converted to immutable Array/
// Object values once the closing token is seen.
type arrayBuilder struct{ items []Value }
type objectBuilder struct {
	members []Member
}

// Parser is a chunk-resumable streaming JSON parser: Parse may be called
// any number of times with arbitrary byte ranges of one JSON document, and
// the result does not depend on where the chunk boundaries fall (spec §8:
// "∀ streaming split of a valid JSON string s at any index i: two-chunk
// parsing yields the same value as one-shot parsing").
type Parser struct {
	states []state
	// result stack: each entry is a Value, *arrayBuilder, *objectBuilder or
	// a string (a parsed object member name awaiting its value).
	result []any
	buffer []byte
}

// NewParser constructs a Parser ready to consume the start of a JSON
// document.
func NewParser() *Parser {
	return &Parser{states: []state{idleParsing}}
}

func (p *Parser) top() state        { return p.states[len(p.states)-1] }
func (p *Parser) setTop(s state)    { p.states[len(p.states)-1] = s }
func (p *Parser) push(s state)      { p.states = append(p.states, s) }
func (p *Parser) pop()              { p.states = p.states[:len(p.states)-1] }
func (p *Parser) resultTop() any    { return p.result[len(p.result)-1] }
func (p *Parser) resultPop() any {
	v := p.result[len(p.result)-1]
	p.result = p.result[:len(p.result)-1]
	return v
}
func (p *Parser) resultPush(v any) { p.result = append(p.result, v) }

// Parse feeds the next chunk of input to the parser. It returns an error if
// the chunk contains malformed JSON; it does not require the document to be
// complete (call Flush once the full input has been fed).
func (p *Parser) Parse(chunk []byte) error {
	begin := 0
	end := len(chunk)

	for begin != end && len(p.states) != 0 {
		var err error
		switch mainState(p.top()) {
		case idleParsing:
			begin = eatWhiteSpace(chunk, begin, end)
			if begin != end {
				s, e := p.parseIdle(chunk[begin])
				if e != nil {
					return e
				}
				p.setTop(s)
			}
		case startNumberParsing:
			begin, err = p.parseNumber(chunk, begin, end)
		case startArrayParsing:
			begin, err = p.parseArray(chunk, begin, end)
		case startObjectParsing:
			begin, err = p.parseObject(chunk, begin, end)
		case startStringParsing:
			begin, err = p.parseString(chunk, begin, end)
		case startTrueParsing, startFalseParsing, startNullParsing:
			begin, err = p.parseLiteral(chunk, begin, end)
		default:
			panic("json: unreachable parser state")
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func eatWhiteSpace(b []byte, begin, end int) int {
	for begin != end {
		switch b[begin] {
		case ' ', '\t', '\n', '\r':
			begin++
		default:
			return begin
		}
	}
	return begin
}

func (p *Parser) parseIdle(c byte) (state, error) {
	switch c {
	case '{':
		return startObjectParsing, nil
	case '[':
		return startArrayParsing, nil
	case '"':
		return startStringParsing, nil
	case 'f':
		return startFalseParsing, nil
	case 't':
		return startTrueParsing, nil
	case 'n':
		return startNullParsing, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return startNumberParsing, nil
	}
	return 0, parseError("unexpected character")
}

func stateAfterDigit(old state) state {
	switch {
	case old >= exponentParsed:
		return exponentValueParsed
	case old >= dotParsed:
		return postDotParsed
	default:
		return preDotParsed
	}
}

func isCompleteNumber(s state) bool {
	return s == preDotParsed || s == leadingZeroParsed || s == postDotParsed || s == exponentValueParsed
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *Parser) parseNumber(chunk []byte, begin, end int) (int, error) {
	stop := false

	for begin != end && !stop {
		c := chunk[begin]
		switch c {
		case '-', '+':
			if p.top() > startNumberParsing && p.top() != exponentParsed {
				return begin, parseError("unexpected sign")
			}
			if p.top() == exponentParsed {
				p.setTop(exponentSignParsed)
			} else {
				p.setTop(signParsed)
			}
		case '.':
			if p.top() != preDotParsed && p.top() != leadingZeroParsed {
				return begin, parseError("unexpected dot(.)")
			}
			p.setTop(dotParsed)
		case '0':
			if p.top() != signParsed && p.top() != startNumberParsing && p.top() != preDotParsed &&
				p.top() != dotParsed && p.top() != postDotParsed && p.top() < exponentParsed {
				return begin, parseError("unexpected 0")
			}
			p.setTop(stateAfterDigit(p.top()))
		case 'e', 'E':
			if p.top() != leadingZeroParsed && p.top() != preDotParsed && p.top() != postDotParsed {
				return begin, parseError("unexpected exponent")
			}
			p.setTop(exponentParsed)
		default:
			if isDigit(c) {
				p.setTop(stateAfterDigit(p.top()))
			} else if isCompleteNumber(p.top()) {
				stop = true
			} else {
				return begin, parseError("incomplete number")
			}
		}

		if !stop {
			p.buffer = append(p.buffer, c)
			begin++
		}
	}

	if stop {
		p.valueParsed(Number{raw: p.buffer})
		p.buffer = nil
	}

	return begin, nil
}

func (p *Parser) parseArray(chunk []byte, begin, end int) (int, error) {
	switch p.top() {
	case startArrayParsing:
		p.setTop(leftBracketParsed)
		p.resultPush(&arrayBuilder{})
		begin++
	case leftBracketParsed:
		begin = eatWhiteSpace(chunk, begin, end)
		if begin != end {
			if chunk[begin] == ']' {
				p.pop()
				begin++
				p.finishArray()
			} else {
				p.setTop(arrayValueParsed)
				p.push(idleParsing)
			}
		}
	default: // arrayValueParsed
		begin = eatWhiteSpace(chunk, begin, end)
		if begin != end {
			closing := false
			switch chunk[begin] {
			case ',':
				p.setTop(arrayValueParsed)
				p.push(idleParsing)
			case ']':
				p.pop()
				closing = true
			default:
				return begin, parseError("unexpected char while parsing array")
			}
			begin++

			ele := p.resultPop().(Value)
			b := p.resultTop().(*arrayBuilder)
			b.items = append(b.items, ele)

			if closing {
				p.finishArray()
			}
		}
	}
	return begin, nil
}

// finishArray replaces the array builder on top of the result stack with
// the equivalent immutable Array, at the same stack position — it never
// touches the state stack, which the caller has already popped to signal
// that this array's closing bracket was consumed.
func (p *Parser) finishArray() {
	b := p.resultPop().(*arrayBuilder)
	p.resultPush(Value(Array{items: b.items}))
}

func (p *Parser) parseObject(chunk []byte, begin, end int) (int, error) {
	switch p.top() {
	case startObjectParsing:
		p.setTop(leftBraceParsed)
		p.resultPush(&objectBuilder{})
		begin++
	case leftBraceParsed:
		begin = eatWhiteSpace(chunk, begin, end)
		if begin != end {
			switch chunk[begin] {
			case '}':
				begin++
				p.pop()
				p.finishObject()
			case '"':
				p.setTop(memberNameParsed)
				p.push(startStringParsing)
			default:
				return begin, parseError("object pair must begin with a string")
			}
		}
	case memberNameParsed:
		begin = eatWhiteSpace(chunk, begin, end)
		if begin != end {
			if chunk[begin] != ':' {
				return begin, parseError("colon expected")
			}
			p.setTop(memberValueParsed)
			p.push(idleParsing)
			begin++
		}
	default: // memberValueParsed
		begin = eatWhiteSpace(chunk, begin, end)
		if begin != end {
			if chunk[begin] == ',' {
				begin++
			}
			p.setTop(leftBraceParsed)

			val := p.resultPop().(Value)
			name := p.resultPop().(String).Unescaped()
			b := p.resultTop().(*objectBuilder)
			b.members = append(b.members, Member{Name: name, Value: val})
		}
	}
	return begin, nil
}

// finishObject replaces the object builder on top of the result stack with
// the equivalent immutable Object, at the same stack position (see
// finishArray).
func (p *Parser) finishObject() {
	b := p.resultPop().(*objectBuilder)
	p.resultPush(Value(Object{members: b.members}))
}

func (p *Parser) parseString(chunk []byte, begin, end int) (int, error) {
	stop := false

	for begin != end && !stop {
		switch p.top() {
		case startStringParsing:
			p.setTop(stringParsing)
			p.buffer = append(p.buffer, chunk[begin])
			begin++
		case stringParsing:
			start := begin
			for begin != end && chunk[begin] != '"' && chunk[begin] != '\\' {
				begin++
			}
			p.buffer = append(p.buffer, chunk[start:begin]...)

			if begin != end {
				p.buffer = append(p.buffer, chunk[begin])
				if chunk[begin] == '"' {
					p.valueParsed(String{raw: p.buffer})
					p.buffer = nil
					stop = true
				} else {
					p.setTop(reverseSolidusParsed)
				}
				begin++
			}
		case reverseSolidusParsed:
			c := chunk[begin]
			if c == 'u' {
				p.setTop(unicodeMarkerParse)
			} else {
				switch c {
				case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
					p.setTop(stringParsing)
				default:
					return begin, parseError("unexpected escaped char")
				}
			}
			p.buffer = append(p.buffer, c)
			begin++
		default:
			missing := 4 - int(p.top()-unicodeMarkerParse)
			if missing <= 0 || missing > 4 {
				panic("json: unreachable unicode escape state")
			}
			if !isHexDigit(chunk[begin]) {
				return begin, parseError("hex digit expected")
			}
			p.buffer = append(p.buffer, chunk[begin])
			begin++
			p.setTop(p.top() + 1)
			if p.top()-unicodeMarkerParse == 4 {
				p.setTop(stringParsing)
			}
		}
	}

	return begin, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

var literalText = [3]string{"true", "false", "null"}

func (p *Parser) parseLiteral(chunk []byte, begin, end int) (int, error) {
	literal := int(p.top()-startTrueParsing) / 100
	text := literalText[literal]
	offset := int(p.top() % 100)

	for begin != end && offset != len(text) {
		if chunk[begin] != text[offset] {
			return begin, parseError("invalid json literal")
		}
		begin++
		offset++
		p.setTop(p.top() + 1)
	}

	if offset == len(text) {
		switch literal {
		case 0:
			p.valueParsed(True())
		case 1:
			p.valueParsed(False())
		case 2:
			p.valueParsed(NewNull())
		}
	}

	return begin, nil
}

// valueParsed pops the current state (the value is complete) and pushes the
// finished value onto the result stack, where the enclosing construct (if
// any) will pick it up on its next transition.
func (p *Parser) valueParsed(v Value) {
	p.pop()
	p.resultPush(v)
}

// Flush must be called after the last chunk has been fed. It fails if the
// parser is mid-construct; an incomplete number is tolerated if its state
// is one of the terminal number sub-states (spec §4.A).
func (p *Parser) Flush() error {
	if len(p.states) != 0 {
		if !isCompleteNumber(p.top()) {
			return parseError("incomplete json number")
		}
		p.valueParsed(Number{raw: p.buffer})
		p.buffer = nil
	}

	if len(p.states) != 0 || len(p.result) != 1 {
		return parseError("incomplete json expression")
	}

	return nil
}

// Result returns the parsed value. Must only be called after a successful
// Flush.
func (p *Parser) Result() Value {
	return p.result[0].(Value)
}

// Parse parses a complete, self-contained JSON document in one call. It is
// a convenience wrapper around Parser for callers that already have the
// whole document in memory.
func Parse(data []byte) (Value, error) {
	p := NewParser()
	if err := p.Parse(data); err != nil {
		return nil, err
	}
	if err := p.Flush(); err != nil {
		return nil, err
	}
	return p.Result(), nil
}

// ParseString is a convenience wrapper around Parse for string input.
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}
