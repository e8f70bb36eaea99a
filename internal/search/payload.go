package search

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeImagePayload decodes an inline image: a "data:<mime>;base64,<data>" URL or bare
// base64 in standard or URL alphabet, padded or not. Whitespace and line breaks inside
// the payload are ignored.
func DecodeImagePayload(payload string) ([]byte, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URL has no payload", ErrInvalidQuery)
		}
		if !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", ErrInvalidQuery)
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, ErrEmptyQuery
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			if len(data) == 0 {
				return nil, ErrEmptyQuery
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: image payload is not valid base64", ErrInvalidQuery)
}
