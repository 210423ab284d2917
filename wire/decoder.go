package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// MaxChunkSize bounds a single declared chunk length, in UTF-16 code units.
const MaxChunkSize = 64 << 20

// initialChunkBuffer caps the allocation made from a declared length before any
// payload has arrived.
const initialChunkBuffer = 64 << 10

// Frame is one stream entry: its sequence number and its content elements.
type Frame struct {
	Seq     int64
	Payload []json.RawMessage
}

// MarshalJSON encodes the frame as [seq, [content...]].
func (f Frame) MarshalJSON() ([]byte, error) {
	payload := f.Payload
	if payload == nil {
		payload = []json.RawMessage{}
	}
	return json.Marshal([]any{f.Seq, payload})
}

// Decoder reads length-prefixed chunks from a stream body.
type Decoder struct {
	r       *bufio.Reader
	pending []Frame
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadChunk returns the payload of the next chunk. The length line counts UTF-16 code
// units of the payload text, so a character outside the BMP counts twice. It returns
// io.EOF when the stream ends before a length line starts. A non-digit length or a
// payload shorter than declared is an ErrFraming; other read failures are an
// ErrTransport.
func (d *Decoder) ReadChunk() ([]byte, error) {
	size, err := d.readLength()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(min(size, initialChunkBuffer))
	for units := 0; units < size; {
		r, n, err := d.r.ReadRune()
		if err != nil {
			if err == io.EOF {
				return nil, errors.Framing(nil, "Decoder", "ReadChunk",
					"read "+strconv.Itoa(size)+" character payload")
			}
			return nil, errors.Transport(err, "Decoder", "ReadChunk", "read payload")
		}
		if r == utf8.RuneError && n == 1 {
			// keep invalid bytes as they are, one unit each
			_ = d.r.UnreadRune()
			b, _ := d.r.ReadByte()
			buf.WriteByte(b)
		} else {
			buf.WriteRune(r)
		}
		units += utf16Units(r)
		if units > size {
			return nil, errors.Framing(nil, "Decoder", "ReadChunk",
				"length "+strconv.Itoa(size)+" splits a surrogate pair")
		}
	}
	return buf.Bytes(), nil
}

func (d *Decoder) readLength() (int, error) {
	var line string
	for {
		raw, err := d.r.ReadString('\n')
		line = strings.TrimRight(raw, "\r\n")
		if err != nil {
			if err != io.EOF {
				return 0, errors.Transport(err, "Decoder", "ReadChunk", "read length")
			}
			if strings.TrimSpace(line) == "" {
				return 0, io.EOF
			}
			return 0, errors.Framing(nil, "Decoder", "ReadChunk",
				"read length "+strconv.Quote(line)+" without newline")
		}
		if strings.TrimSpace(line) != "" {
			break
		}
	}

	for _, c := range line {
		if c < '0' || c > '9' {
			return 0, errors.Framing(nil, "Decoder", "ReadChunk", "parse length "+strconv.Quote(line))
		}
	}
	size, err := strconv.Atoi(line)
	if err != nil || size > MaxChunkSize {
		return 0, errors.Framing(nil, "Decoder", "ReadChunk", "parse length "+strconv.Quote(line))
	}
	return size, nil
}

// utf16Units is the UTF-16 length of r; invalid input decodes to RuneError and counts one.
func utf16Units(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// textLength counts payload the way ReadChunk does.
func textLength(payload []byte) int {
	n := 0
	for len(payload) > 0 {
		r, size := utf8.DecodeRune(payload)
		n += utf16Units(r)
		payload = payload[size:]
	}
	return n
}

// Next returns the next frame in stream order, or io.EOF after the last chunk.
func (d *Decoder) Next() (Frame, error) {
	for len(d.pending) == 0 {
		chunk, err := d.ReadChunk()
		if err != nil {
			return Frame{}, err
		}
		frames, err := parseChunk(chunk)
		if err != nil {
			return Frame{}, err
		}
		d.pending = frames
	}

	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, nil
}

// parseChunk accepts [seq,[...]] and [[seq,[...]],...].
func parseChunk(chunk []byte) ([]Frame, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(chunk, &elems); err != nil {
		return nil, errors.Framing(err, "Decoder", "Next", "parse chunk as JSON array")
	}
	if len(elems) == 0 {
		return nil, nil
	}

	if first := bytes.TrimSpace(elems[0]); len(first) > 0 && first[0] == '[' {
		frames := make([]Frame, 0, len(elems))
		for _, e := range elems {
			var entry []json.RawMessage
			if err := json.Unmarshal(e, &entry); err != nil {
				return nil, errors.Framing(err, "Decoder", "Next", "parse batched entry")
			}
			f, err := parseEntry(entry)
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
		}
		return frames, nil
	}

	f, err := parseEntry(elems)
	if err != nil {
		return nil, err
	}
	return []Frame{f}, nil
}

func parseEntry(entry []json.RawMessage) (Frame, error) {
	if len(entry) == 0 {
		return Frame{}, errors.Protocol(nil, "Decoder", "Next", "read entry seq")
	}
	seq, err := parseSeq(entry[0])
	if err != nil {
		return Frame{}, errors.Protocol(err, "Decoder", "Next", "read entry seq")
	}

	f := Frame{Seq: seq}
	if len(entry) > 1 {
		if err := json.Unmarshal(entry[1], &f.Payload); err != nil {
			return Frame{}, errors.Protocol(err, "Decoder", "Next", "read entry content")
		}
	}
	return f, nil
}

func parseSeq(raw json.RawMessage) (int64, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] == '"' {
		return 0, stderrors.New("seq is not a number")
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n.Int64()
}

// EncodeChunk frames payload as <len>\n<payload>, len counting UTF-16 code units.
func EncodeChunk(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+12)
	out = strconv.AppendInt(out, int64(textLength(payload)), 10)
	out = append(out, '\n')
	return append(out, payload...)
}

// EncodeFrames frames one or more entries as a single chunk. One frame is written in
// the single-entry form, more than one in the batched form.
func EncodeFrames(frames ...Frame) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if len(frames) == 1 {
		data, err = json.Marshal(frames[0])
	} else {
		data, err = json.Marshal(frames)
	}
	if err != nil {
		return nil, errors.WrapInvalid(err, "wire", "EncodeFrames", "marshal frames")
	}
	return EncodeChunk(data), nil
}
