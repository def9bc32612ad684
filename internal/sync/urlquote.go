package sync

import (
	"fmt"
	"strconv"
	"strings"
)

// urlSafe is the exact charset left unescaped when quoting a raw master-text
// dump for the wire: ASCII letters, digits, "_.-", and "!~*'();/?:@&=+$,# ".
const urlSafe = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"_.-" +
	"!~*'();/?:@&=+$,# "

var urlSafeSet = func() [256]bool {
	var set [256]bool
	for _, b := range []byte(urlSafe) {
		set[b] = true
	}
	return set
}()

// urlQuote percent-encodes s (as UTF-8 bytes), leaving urlSafe characters
// untouched. Used for the R: raw-dump outbound line.
func urlQuote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if urlSafeSet[c] {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// urlUnquote reverses urlQuote (and accepts any %XX sequence regardless of
// which set originally produced it), for decoding raw action payloads.
func urlUnquote(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			if i+2 >= len(s) {
				return "", fmt.Errorf("urlUnquote: truncated escape at %d", i)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("urlUnquote: invalid escape %q: %w", s[i:i+3], err)
			}
			b.WriteByte(byte(v))
			i += 2
		} else {
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
