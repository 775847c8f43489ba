// Package text is a collection of helpers for building JSON by appending to
// byte slices.
package text

type AppendBytesClosure func(dst, src []byte) []byte

func Noop(dst, src []byte) []byte { return append(dst, src...) }

func AppendQuote(dst, src []byte, ac AppendBytesClosure) []byte {
	dst = append(dst, '"')
	dst = ac(dst, src)
	dst = append(dst, '"')
	return dst
}

// Quote wraps src in double quotes without escaping, for values already known
// to be JSON safe.
func Quote(dst, src []byte) []byte { return AppendQuote(dst, src, Noop) }

// JSONKey generates the JSON format for an object key and terminates with the
// colon.
func JSONKey(dst, k []byte) (b []byte) {
	dst = append(dst, '"')
	dst = append(dst, k...)
	dst = append(dst, '"', ':')
	b = dst
	return
}

// AppendQuotedList appends a JSON array of strings, each passed through ac.
func AppendQuotedList(dst []byte, src [][]byte, ac AppendBytesClosure) []byte {
	dst = append(dst, '[')
	for i := range src {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = AppendQuote(dst, src[i], ac)
	}
	dst = append(dst, ']')
	return dst
}
