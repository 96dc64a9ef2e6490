package imagemeta

import (
	"errors"
	"testing"
	"time"
)

func TestExtractWithoutEXIF(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"empty": nil,
		"png":   {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
		"text":  []byte("definitely not an image"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := Extract(data); !errors.Is(err, ErrNoEXIF) {
				t.Errorf("Extract() error = %v, want ErrNoEXIF", err)
			}
		})
	}
}

func TestInfoHelpers(t *testing.T) {
	t.Parallel()

	var empty Info
	if !empty.Empty() {
		t.Error("zero Info should be empty")
	}
	if empty.TakenAtString() != "" {
		t.Errorf("TakenAtString() = %q, want empty", empty.TakenAtString())
	}

	info := Info{Model: "X100V", TakenAt: time.Date(2023, 5, 1, 10, 30, 0, 0, time.UTC)}
	if info.Empty() {
		t.Error("Info with model should not be empty")
	}
	if got := info.TakenAtString(); got != "2023-05-01T10:30:00Z" {
		t.Errorf("TakenAtString() = %q", got)
	}
}
