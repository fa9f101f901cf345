package prompt

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Detector scans a live stderr stream for prompts.
//
// Each byte read is echoed to the echo writer before it is examined, so the
// operator sees the raw prompt text. Only a window as long as the longest
// phrase is kept between bytes; a phrase can only complete on the byte just
// read, so checking the window suffix after every byte finds the first
// occurrence of any phrase in the text read so far.
type Detector struct {
	r        *bufio.Reader
	echo     io.Writer
	patterns []Pattern
	window   []byte
	maxLen   int
}

// NewDetector creates a detector reading from r. A nil echo discards echoed bytes.
func NewDetector(r io.Reader, echo io.Writer) *Detector {
	if echo == nil {
		echo = io.Discard
	}
	patterns := DefaultPatterns()
	maxLen := 0
	for _, p := range patterns {
		if len(p.Phrase) > maxLen {
			maxLen = len(p.Phrase)
		}
	}
	return &Detector{
		r:        bufio.NewReader(r),
		echo:     echo,
		patterns: patterns,
		window:   make([]byte, 0, 2*maxLen),
		maxLen:   maxLen,
	}
}

// Scan consumes bytes until a prompt phrase completes or the stream ends.
// It returns None with a nil error at end of stream. A read that yields no
// data is not treated as the end of the stream.
func (d *Detector) Scan() (Kind, error) {
	d.window = d.window[:0]

	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.ErrNoProgress) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return None, nil
			}
			return None, err
		}

		_, _ = d.echo.Write([]byte{b})

		if kind := d.push(b); kind != None {
			return kind, nil
		}
	}
}

func (d *Detector) push(b byte) Kind {
	if len(d.window) == cap(d.window) {
		n := copy(d.window, d.window[len(d.window)-d.maxLen+1:])
		d.window = d.window[:n]
	}
	d.window = append(d.window, b)

	tail := string(d.window)
	for _, p := range d.patterns {
		if strings.HasSuffix(tail, p.Phrase) {
			return p.Kind
		}
	}
	return None
}

// ScanString runs a fresh detector over s. It is a convenience for callers
// that already hold the full text.
func ScanString(s string) Kind {
	kind, _ := NewDetector(strings.NewReader(s), nil).Scan()
	return kind
}
