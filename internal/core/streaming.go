package core

// streaming.go reads an uploaded file into memory for one import run.
//
// Input handling is bounded: the reader is capped at the configured maximum
// size, a UTF-8 byte-order mark is dropped, and invalid UTF-8 sequences are
// replaced with '?' so that the tokenizer always sees valid text.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFileTooLarge is returned by ReadInput when the input exceeds the limit.
var ErrFileTooLarge = errors.New("file too large")

var bomBytes = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a leading UTF-8 byte-order mark.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(bomBytes))
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return 0, err
		}
		if bytes.Equal(head, bomBytes) {
			if _, err := b.r.Discard(len(bomBytes)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// ReadInput reads at most maxBytes from r and returns sanitized text.
// maxBytes <= 0 disables the limit.
func ReadInput(r io.Reader, maxBytes int64) (string, error) {
	src := io.Reader(NewBOMSkippingReader(r))
	if maxBytes > 0 {
		src = io.LimitReader(src, maxBytes+1)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxBytes)
	}
	return strings.ToValidUTF8(string(data), "?"), nil
}
