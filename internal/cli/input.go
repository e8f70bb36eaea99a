package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hyperjump/miru/internal/search"
)

// MaxInputBytes bounds a query payload read from stdin or a file.
const MaxInputBytes int64 = 64 << 20

// ErrInputTooLarge is returned for payloads above MaxInputBytes.
var ErrInputTooLarge = errors.New("query input too large")

// ReadQueryImage resolves the image argument of `miru search` into image bytes.
// The argument is tried as a data URL, then as a path to an existing file, then as bare
// base64. With fromStdin (or an argument of "-") the payload comes from stdin instead,
// which avoids command line length limits; stdin may carry raw image bytes or the same
// text forms.
func ReadQueryImage(arg string, fromStdin bool, stdin io.Reader) ([]byte, error) {
	if fromStdin || arg == "-" {
		data, err := readLimited(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		if isImage(data) {
			return data, nil
		}
		return search.DecodeImagePayload(string(data))
	}

	if arg == "" {
		return nil, search.ErrEmptyQuery
	}
	if strings.HasPrefix(arg, "data:") {
		return search.DecodeImagePayload(arg)
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("open query image: %w", err)
		}
		defer f.Close()
		data, err := readLimited(f)
		if err != nil {
			return nil, fmt.Errorf("read query image: %w", err)
		}
		if len(data) == 0 {
			return nil, search.ErrEmptyQuery
		}
		return data, nil
	}
	return search.DecodeImagePayload(arg)
}

// ReadQueryText returns the text argument, or stdin when fromStdin is set.
func ReadQueryText(arg string, fromStdin bool, stdin io.Reader) (string, error) {
	if fromStdin || arg == "-" {
		data, err := readLimited(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		arg = string(data)
	}
	text := strings.TrimSpace(arg)
	if text == "" {
		return "", search.ErrEmptyQuery
	}
	return text, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxInputBytes {
		return nil, ErrInputTooLarge
	}
	return data, nil
}

func isImage(data []byte) bool {
	if bytes.HasPrefix(data, []byte("data:")) {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
