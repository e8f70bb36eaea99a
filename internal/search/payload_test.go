package search

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeImagePayload(t *testing.T) {
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFE}
	std := base64.StdEncoding.EncodeToString(raw)
	tests := []struct {
		name    string
		payload string
	}{
		{"data url", "data:image/jpeg;base64," + std},
		{"bare base64", std},
		{"unpadded", base64.RawStdEncoding.EncodeToString(raw)},
		{"url alphabet", base64.URLEncoding.EncodeToString(raw)},
		{"wrapped lines", std[:4] + "\n" + std[4:] + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeImagePayload(tt.payload)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(raw) {
				t.Errorf("got %x, want %x", got, raw)
			}
		})
	}
}

func TestDecodeImagePayload_Errors(t *testing.T) {
	tests := []struct {
		payload string
		want    error
	}{
		{"", ErrEmptyQuery},
		{"data:image/png;base64,", ErrEmptyQuery},
		{"data:image/png,abc", ErrInvalidQuery},
		{"data:image/png;base64", ErrInvalidQuery},
		{"!!!not base64!!!", ErrInvalidQuery},
	}
	for _, tt := range tests {
		if _, err := DecodeImagePayload(tt.payload); !errors.Is(err, tt.want) {
			t.Errorf("DecodeImagePayload(%q) = %v, want %v", tt.payload, err, tt.want)
		}
	}
}
