// Package tokenizer splits text into index terms: maximal runs of ASCII
// letters and digits, lower-cased, keeping only runs longer than two bytes.
// Every other byte, including each byte of a multi-byte UTF-8 sequence, is a
// separator.
package tokenizer

// MinTermLength is the shortest run kept as a term.
const MinTermLength = 3

// Tokenize breaks text into lower-cased terms in order of appearance.
func Tokenize(text string) []string {
	tokens := make([]string, 0, len(text)/6)
	buf := make([]byte, 0, 32)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isAlnum(c) {
			buf = append(buf, toLower(c))
			continue
		}
		tokens = appendTerm(tokens, buf)
		buf = buf[:0]
	}
	return appendTerm(tokens, buf)
}

func appendTerm(tokens []string, run []byte) []string {
	if len(run) < MinTermLength {
		return tokens
	}
	return append(tokens, string(run))
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
