package protocol

import "unicode/utf8"

// UTF8Decoder incrementally decodes UTF-8 text arriving in arbitrary byte
// slices. A multi-byte character split across two writes is held back until
// its remaining bytes arrive, so callers never observe a replacement
// character for a merely-split rune.
//
// The zero value is ready to use.
type UTF8Decoder struct {
	pending []byte
}

// Write appends p to any held-back bytes and returns the longest prefix that
// decodes to complete UTF-8 characters. Trailing bytes that form the start
// of a valid but incomplete rune are retained for the next call.
func (d *UTF8Decoder) Write(p []byte) string {
	buf := p
	if len(d.pending) > 0 {
		buf = append(d.pending, p...)
		d.pending = nil
	}

	// Scan back at most utf8.UTFMax-1 bytes for an incomplete trailing rune.
	n := len(buf)
	cut := n
	for back := 1; back < utf8.UTFMax && back <= n; back++ {
		b := buf[n-back]
		if b < utf8.RuneSelf {
			break // ASCII: everything before is complete
		}
		if b&0xC0 == 0xC0 {
			// Lead byte found back bytes from the end. If the rune it opens
			// is incomplete, hold it back; otherwise the tail is complete.
			if !utf8.FullRune(buf[n-back:]) {
				cut = n - back
			}
			break
		}
		// Continuation byte, keep scanning.
	}

	if cut < n {
		d.pending = append(d.pending, buf[cut:]...)
	}
	return string(buf[:cut])
}

// Flush returns any bytes still held back, decoded permissively. Called when
// the stream ends; a truncated rune at end of stream is surfaced as-is.
func (d *UTF8Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := string(d.pending)
	d.pending = nil
	return out
}
