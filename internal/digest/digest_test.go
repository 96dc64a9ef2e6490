package digest

import (
	"bytes"
	"errors"
	"testing"
)

func TestHasherSum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		algo Algorithm
		in   string
		want string
	}{
		{MD5, "", "d41d8cd98f00b204e9800998ecf8427e"},
		{MD5, "abc", "900150983cd24fb0d6963f7d28e17f72"},
		{SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{SHA3256, "abc", "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo)+"/"+tt.in, func(t *testing.T) {
			t.Parallel()
			h, err := New(tt.algo)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.algo, err)
			}
			if got := h.Sum([]byte(tt.in)); got != tt.want {
				t.Errorf("Sum(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasherDeterministic(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xFF, 0xD8, 0x00, 0x42}, 4096)
	for _, algo := range Algorithms() {
		h, err := New(algo)
		if err != nil {
			t.Fatalf("New(%q) error = %v", algo, err)
		}
		first := h.Sum(data)
		if second := h.Sum(append([]byte(nil), data...)); first != second {
			t.Errorf("%s: repeated Sum differs: %s != %s", algo, first, second)
		}
		streamed, err := h.SumReader(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: SumReader error = %v", algo, err)
		}
		if streamed != first {
			t.Errorf("%s: SumReader = %s, Sum = %s", algo, streamed, first)
		}
	}
}

func TestBLAKE2bLength(t *testing.T) {
	t.Parallel()

	h, err := New(BLAKE2b256)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if got := len(h.Sum([]byte("photo"))); got != 64 {
		t.Errorf("hex length = %d, want 64", got)
	}
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", MD5, false},
		{"MD5", MD5, false},
		{"sha256", SHA256, false},
		{"sha3", SHA3256, false},
		{"blake2b", BLAKE2b256, false},
		{"crc32", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownAlgorithm) {
				t.Errorf("ParseAlgorithm(%q) error = %v, want ErrUnknownAlgorithm", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewUnknown(t *testing.T) {
	t.Parallel()

	if _, err := New("whirlpool"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("New(whirlpool) error = %v, want ErrUnknownAlgorithm", err)
	}
}
