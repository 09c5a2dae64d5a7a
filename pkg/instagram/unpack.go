package instagram

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errNotPacked = errors.New("no packed payload")

// packedPattern matches the obfuscated `eval(function(h,u,n,t,e,r){...}("h",u,"n",t,e,r))`
// wrapper that snapsave returns instead of HTML.
var packedPattern = regexp.MustCompile(`(?s)eval\(function\(h,u,n,t,e,r\)\{.*?\}\("(.*?)",\s*"?(\d+)"?,\s*"(.*?)",\s*(\d+),\s*(\d+),\s*(\d+)\)\)`)

// unpack decodes the packed payload in body. The payload is a sequence of
// numbers written in base e with the alphabet n, each terminated by n[e];
// every number minus the offset t is one byte of the UTF-8 output.
func unpack(body string) (string, error) {
	m := packedPattern.FindStringSubmatch(body)
	if m == nil {
		return "", errNotPacked
	}
	data, alphabet := m[1], []rune(m[3])
	offset, err := strconv.Atoi(m[4])
	if err != nil {
		return "", err
	}
	base, err := strconv.Atoi(m[5])
	if err != nil {
		return "", err
	}
	if base < 2 || base >= len(alphabet) {
		return "", errors.New("packed payload has an invalid base")
	}

	digits := make(map[rune]int, base)
	for i, r := range alphabet[:base] {
		digits[r] = i
	}
	sep := alphabet[base]

	var out []byte
	value := 0
	for _, r := range data {
		if r == sep {
			out = append(out, byte(value-offset))
			value = 0
			continue
		}
		if d, ok := digits[r]; ok {
			value = value*base + d
		}
	}

	if utf8.Valid(out) {
		return string(out), nil
	}
	// Not UTF-8: treat every byte as a code point.
	var b strings.Builder
	for _, c := range out {
		b.WriteRune(rune(c))
	}
	return b.String(), nil
}
