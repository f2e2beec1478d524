package encoding

import (
	"encoding"
	"errors"
	"strings"
	"testing"

	"github.com/project-octo/octovm/internal/vm"
)

// Assert interface implemented.
var (
	_ encoding.TextMarshaler   = (*HexEncoding)(nil)
	_ encoding.TextUnmarshaler = (*HexEncoding)(nil)
)

type unmarshalTestCase struct {
	name, input string

	expectSegments int
	expectErr      error
}

func TestHexEncoder_UnmarshalText(t *testing.T) {
	t.Parallel()

	tcs := []unmarshalTestCase{
		{
			name:      "empty",
			input:     "",
			expectErr: errEmpty,
		},
		{
			name:      "eof record",
			input:     ":00000001ff",
			expectErr: errEmpty,
		},
		{
			name:      "eof record with newlines",
			input:     "\n\n:00000001ff\n\n",
			expectErr: errEmpty,
		},
		{
			name:      "invalid bytes",
			input:     ":invalid",
			expectErr: errInvalidHex,
		},
		{
			name:      "nonsense",
			input:     "u wot mate",
			expectErr: errInvalidHex,
		},
		{
			name:      "too short",
			input:     ":0",
			expectErr: errInvalidHex,
		},
		{
			name:      "too short",
			input:     ":00",
			expectErr: errInvalidHex,
		},
		{
			name:      "declared length exceeds record",
			input:     ":FF000000000",
			expectErr: errInvalidHex,
		},
		{
			name:      "garbage line before any data",
			input:     "nope\n:00000001ff\n",
			expectErr: errInvalidHex,
		},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, err := unmarshal(tc)

			t.Logf("have: %q, got: %+v, err: %v", tc.input, code, err)

			switch {
			case tc.expectErr != nil && err != nil:
				if !errors.Is(err, tc.expectErr) {
					t.Errorf("Unexpected error: got: %s, want: %s",
						err.Error(), tc.expectErr.Error())
				}
			case tc.expectErr != nil && err == nil:
				t.Errorf("Expected error: %s", tc.expectErr.Error())
			case tc.expectErr == nil && err != nil:
				t.Errorf("Unexpected error: got: %v", err)
			case len(code) != tc.expectSegments:
				t.Errorf("Unexpected code: want: %d segments, got: %d", tc.expectSegments, len(code))
			}
		})
	}
}

func unmarshal(tc unmarshalTestCase) (vm.ObjectCode, error) {
	decoder := HexEncoding{}
	err := decoder.UnmarshalText([]byte(tc.input))

	return decoder.Code, err
}

func TestHexEncoder_MarshalEmpty(t *testing.T) {
	t.Parallel()

	encoder := HexEncoding{}

	out, err := encoder.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %s", err)
	}

	if string(out) != ":00000001ff\n" {
		t.Errorf("got %q, want an EOF-only file", out)
	}
}

func TestHexEncoder_MarshalEndsWithEOFRecord(t *testing.T) {
	t.Parallel()

	encoder := HexEncoding{Code: vm.ObjectCode{0x0400: {1, 2, 3}}}

	out, err := encoder.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %s", err)
	}

	if !strings.HasSuffix(string(out), ":00000001ff\n") {
		t.Errorf("got %q, want it to end with the EOF record", out)
	}
}

// flatten collapses a sparse ObjectCode into an address->byte map, so a round trip can be
// checked by content regardless of how a long segment happened to be chunked into hex records.
func flatten(code vm.ObjectCode) map[vm.Word]vm.Byte {
	out := map[vm.Word]vm.Byte{}

	for start, data := range code {
		for i, b := range data {
			out[start+vm.Word(i)] = b
		}
	}

	return out
}

func equalFlat(a, b map[vm.Word]vm.Byte) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		if b[k] != v {
			return false
		}
	}

	return true
}

func TestHexEncoder_RoundTrip(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		code vm.ObjectCode
	}{
		{"empty", vm.ObjectCode{}},
		{"one short segment", vm.ObjectCode{0x0400: {0x01, 0x02, 0x03, 0x04}}},
		{"two segments", vm.ObjectCode{0x0000: {0xAA, 0xBB}, 0x1000: {0xCC, 0xDD, 0xEE}}},
		{"segment longer than one record chunks cleanly", vm.ObjectCode{0x0000: longSegment(90)}},
	}

	for _, tc := range tcs {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enc := HexEncoding{Code: tc.code}

			text, err := enc.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText: %s", err)
			}

			dec := HexEncoding{}
			if err := dec.UnmarshalText(text); err != nil {
				if len(tc.code) == 0 && errors.Is(err, errEmpty) {
					return
				}

				t.Fatalf("UnmarshalText(%q): %s", text, err)
			}

			want := flatten(tc.code)
			got := flatten(dec.Code)

			if !equalFlat(want, got) {
				t.Errorf("round trip mismatch: got %v, want %v", got, want)
			}
		})
	}
}

func longSegment(n int) []vm.Byte {
	bs := make([]vm.Byte, n)
	for i := range bs {
		bs[i] = vm.Byte(i)
	}

	return bs
}
