package sandbox

import "strings"

// stripAnnotations blanks Python type annotations so annotated code parses as
// Starlark. It handles parameter annotations and return annotations in def
// headers, and annotated assignments at the start of a statement. Removed
// text is replaced by spaces so line and column numbers in later errors
// still point into the original source. A bare declaration such as "x: int"
// becomes "pass".
func stripAnnotations(src string) string {
	if !strings.Contains(src, ":") {
		return src
	}
	s := &annotationStripper{out: []byte(src), toks: tokenize(src)}
	s.run()
	return string(s.out)
}

type tokKind int

const (
	tokName tokKind = iota
	tokOp
	tokString
	tokNumber
	tokNewline
)

type token struct {
	kind  tokKind
	text  string
	start int
	end   int
	// depth is the bracket nesting around the token. Brackets carry the
	// depth of their surroundings.
	depth int
}

func (t token) is(op string) bool {
	return t.kind == tokOp && t.text == op
}

// pythonKeywords are names that can start a statement and are directly
// followed by a colon without being an annotated target.
var pythonKeywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "load": true, "nonlocal": true, "not": true,
	"or": true, "pass": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true,
}

type annotationStripper struct {
	out  []byte
	toks []token
}

func (s *annotationStripper) run() {
	stmtStart := true
	for i := 0; i < len(s.toks); i++ {
		t := s.toks[i]
		switch {
		case t.kind == tokName && t.text == "def":
			i = s.def(i)
		case stmtStart && t.depth == 0 && t.kind == tokName && !pythonKeywords[t.text] &&
			i+1 < len(s.toks) && s.toks[i+1].is(":"):
			i = s.assignment(i)
		}
		last := s.toks[i]
		stmtStart = last.kind == tokNewline || (last.depth == 0 && last.is(";"))
	}
}

// def strips the annotations of the header starting at toks[i] and returns
// the index of the last token it consumed.
func (s *annotationStripper) def(i int) int {
	if i+2 >= len(s.toks) || s.toks[i+1].kind != tokName || !s.toks[i+2].is("(") {
		return i
	}
	d := s.toks[i+2].depth
	inDefault, inLambda := false, false

	j := i + 3
	for ; j < len(s.toks); j++ {
		t := s.toks[j]
		if t.depth == d && t.is(")") {
			break
		}
		if t.depth != d+1 {
			continue
		}
		switch {
		case t.is(","):
			inDefault = false
		case t.is("="):
			inDefault = true
		case t.kind == tokName && t.text == "lambda":
			inLambda = true
		case t.is(":") && inLambda:
			inLambda = false
		case t.is(":") && !inDefault:
			k := j + 1
			for k < len(s.toks) {
				n := s.toks[k]
				if (n.depth == d+1 && (n.is(",") || n.is("="))) || (n.depth == d && n.is(")")) {
					break
				}
				k++
			}
			s.blank(t.start, s.toks[k-1].end)
			j = k - 1
		}
	}
	if j >= len(s.toks) {
		return len(s.toks) - 1
	}

	// Return annotation.
	if j+1 < len(s.toks) && s.toks[j+1].is("->") {
		k := j + 2
		for k < len(s.toks) && !(s.toks[k].depth == d && s.toks[k].is(":")) {
			k++
		}
		if k < len(s.toks) {
			s.blank(s.toks[j+1].start, s.toks[k-1].end)
			return k - 1
		}
	}
	return j
}

// assignment strips "name: type" in "name: type = value" and turns a bare
// "name: type" into pass. It returns the index of the last token consumed.
func (s *annotationStripper) assignment(i int) int {
	k := i + 2
	for k < len(s.toks) {
		t := s.toks[k]
		if t.kind == tokNewline || (t.depth == 0 && (t.is("=") || t.is(";"))) {
			break
		}
		k++
	}
	if k < len(s.toks) && s.toks[k].is("=") {
		s.blank(s.toks[i+1].start, s.toks[k-1].end)
		return k - 1
	}

	start, end := s.toks[i].start, s.toks[k-1].end
	s.blank(start, end)
	if end-start >= len("pass") {
		copy(s.out[start:], "pass")
	}
	return k - 1
}

// blank replaces out[start:end] with spaces, keeping line breaks and line
// continuations.
func (s *annotationStripper) blank(start, end int) {
	for p := start; p < end; p++ {
		switch s.out[p] {
		case '\n', '\r':
			continue
		case '\\':
			if p+1 < len(s.out) && (s.out[p+1] == '\n' || s.out[p+1] == '\r') {
				continue
			}
		}
		s.out[p] = ' '
	}
}

var pythonOps = []string{
	"**=", "//=", "<<=", ">>=",
	"->", "==", "!=", "<=", ">=", "**", "//", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
}

// tokenize splits Python source into the tokens the stripper needs. Newline
// tokens are only produced outside brackets, where they end a statement.
func tokenize(src string) []token {
	var toks []token
	depth := 0

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			if depth == 0 {
				toks = append(toks, token{kind: tokNewline, text: "\n", start: i, end: i + 1})
			}
			i++

		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			i++

		case c == '\\' && i+1 < len(src) && (src[i+1] == '\n' || src[i+1] == '\r'):
			i += 2
			if src[i-1] == '\r' && i < len(src) && src[i] == '\n' {
				i++
			}

		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '\'' || c == '"':
			end := scanString(src, i)
			toks = append(toks, token{kind: tokString, text: src[i:end], start: i, end: end, depth: depth})
			i = end

		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			if j < len(src) && (src[j] == '\'' || src[j] == '"') && isStringPrefix(src[i:j]) {
				end := scanString(src, j)
				toks = append(toks, token{kind: tokString, text: src[i:end], start: i, end: end, depth: depth})
				i = end
				continue
			}
			toks = append(toks, token{kind: tokName, text: src[i:j], start: i, end: j, depth: depth})
			i = j

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := i + 1
			for j < len(src) && (isIdentPart(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], start: i, end: j, depth: depth})
			i = j

		default:
			op := src[i : i+1]
			for _, candidate := range pythonOps {
				if strings.HasPrefix(src[i:], candidate) {
					op = candidate
					break
				}
			}
			tok := token{kind: tokOp, text: op, start: i, end: i + len(op), depth: depth}
			switch op {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
				tok.depth = depth
			}
			toks = append(toks, tok)
			i += len(op)
		}
	}
	return toks
}

// scanString returns the end offset of the string literal whose opening
// quote is at src[q]. Unterminated literals end at the line break, or at
// the end of src for triple-quoted ones.
func scanString(src string, q int) int {
	quote := src[q]
	delim := src[q : q+1]
	if strings.HasPrefix(src[q:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}

	for i := q + len(delim); i < len(src); i++ {
		switch {
		case src[i] == '\\':
			i++
		case len(delim) == 3 && strings.HasPrefix(src[i:], delim):
			return i + 3
		case len(delim) == 1 && src[i] == quote:
			return i + 1
		case len(delim) == 1 && src[i] == '\n':
			return i
		}
	}
	return len(src)
}

func isStringPrefix(p string) bool {
	switch strings.ToLower(p) {
	case "r", "b", "rb", "br", "u":
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
