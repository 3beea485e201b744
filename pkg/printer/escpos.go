package printer

import (
	"bytes"
	"fmt"
	"strings"
)

// ESC/POS command constants
const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

// Text alignment
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// Font size
const (
	FontNormal = 0x00
	FontDouble = 0x11 // Double width + double height
	FontWide   = 0x10 // Double width only
	FontTall   = 0x01 // Double height only
)

// Receipt builds the ESC/POS byte stream for one printed clinic receipt.
type Receipt struct {
	buf   bytes.Buffer
	width int // print width in characters (32 for 58mm paper, 48 for 80mm)
}

// NewReceipt creates an initialized receipt with the given character width.
// Common widths: 32 for 58mm paper, 48 for 80mm paper.
func NewReceipt(charWidth int) *Receipt {
	if charWidth <= 0 {
		charWidth = 32
	}
	r := &Receipt{width: charWidth}
	r.buf.Write([]byte{ESC, '@'})
	return r
}

// LineFeed sends a line feed.
func (r *Receipt) LineFeed() *Receipt {
	r.buf.WriteByte(LF)
	return r
}

// FeedLines sends n line feeds.
func (r *Receipt) FeedLines(n int) *Receipt {
	for i := 0; i < n; i++ {
		r.buf.WriteByte(LF)
	}
	return r
}

// SetAlign sets text alignment: AlignLeft, AlignCenter, AlignRight.
func (r *Receipt) SetAlign(align int) *Receipt {
	r.buf.Write([]byte{ESC, 'a', byte(align)})
	return r
}

// SetBold enables or disables bold text.
func (r *Receipt) SetBold(on bool) *Receipt {
	b := byte(0)
	if on {
		b = 1
	}
	r.buf.Write([]byte{ESC, 'E', b})
	return r
}

// SetFontSize sets the character size. Use FontNormal, FontDouble, FontWide, or FontTall.
func (r *Receipt) SetFontSize(size byte) *Receipt {
	r.buf.Write([]byte{GS, '!', size})
	return r
}

// Text writes a line of text followed by a line feed.
func (r *Receipt) Text(s string) *Receipt {
	r.buf.WriteString(s)
	r.buf.WriteByte(LF)
	return r
}

// TextF writes a formatted line of text followed by a line feed.
func (r *Receipt) TextF(format string, args ...interface{}) *Receipt {
	r.buf.WriteString(fmt.Sprintf(format, args...))
	r.buf.WriteByte(LF)
	return r
}

// Separator prints a full-width separator line.
func (r *Receipt) Separator(char byte) *Receipt {
	r.buf.WriteString(strings.Repeat(string(char), r.width))
	r.buf.WriteByte(LF)
	return r
}

// KeyValue prints a left-aligned key and right-aligned value on the same line.
// Example: "Invoice:              INV-00042"
func (r *Receipt) KeyValue(key, value string) *Receipt {
	spaces := r.width - len(key) - len(value)
	if spaces < 1 {
		spaces = 1
	}
	r.buf.WriteString(key)
	r.buf.WriteString(strings.Repeat(" ", spaces))
	r.buf.WriteString(value)
	r.buf.WriteByte(LF)
	return r
}

// ItemLine prints a billed item line: qty x name, then the right-aligned total.
// Example: "2x Consultation           20.000"
func (r *Receipt) ItemLine(qty int, name, total string) *Receipt {
	prefix := fmt.Sprintf("%dx %s", qty, name)
	spaces := r.width - len(prefix) - len(total)
	if spaces < 1 {
		spaces = 1
	}
	r.buf.WriteString(prefix)
	r.buf.WriteString(strings.Repeat(" ", spaces))
	r.buf.WriteString(total)
	r.buf.WriteByte(LF)
	return r
}

// PartialCut sends the partial paper cut command, leaving the receipt
// attached by a strip so it tears off cleanly.
func (r *Receipt) PartialCut() *Receipt {
	r.buf.Write([]byte{GS, 'V', 0x01})
	return r
}

// Bytes returns the accumulated ESC/POS byte stream.
func (r *Receipt) Bytes() []byte {
	return r.buf.Bytes()
}
