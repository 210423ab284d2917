package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

func TestDecoder_ChunkRoundTrip(t *testing.T) {
	messages := []string{
		`[1,[{"targetChange":{"targetChangeType":"ADD","targetIds":[2]}}]]`,
		`{"unicode":"héllo wörld ✓"}`,
		`[]`,
		`"noop"`,
		`[[2,["noop"]],[3,["noop"]]]`,
	}

	var stream bytes.Buffer
	for _, m := range messages {
		stream.Write(EncodeChunk([]byte(m)))
	}

	dec := NewDecoder(&stream)
	for _, want := range messages {
		got, err := dec.ReadChunk()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err := dec.ReadChunk()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_FramesInOrder(t *testing.T) {
	var stream bytes.Buffer
	var want []int64
	for seq := int64(1); seq <= 20; seq++ {
		payload := []json.RawMessage{json.RawMessage(fmt.Sprintf(`{"n":%d}`, seq))}
		// alternate single and batched chunks
		if seq%3 == 0 {
			chunk, err := EncodeFrames(Frame{Seq: seq, Payload: payload}, Frame{Seq: seq + 100, Payload: payload})
			require.NoError(t, err)
			stream.Write(chunk)
			want = append(want, seq, seq+100)
			continue
		}
		chunk, err := EncodeFrames(Frame{Seq: seq, Payload: payload})
		require.NoError(t, err)
		stream.Write(chunk)
		want = append(want, seq)
	}

	dec := NewDecoder(&stream)
	var got []int64
	for {
		f, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Len(t, f.Payload, 1)
		got = append(got, f.Seq)
	}
	assert.Equal(t, want, got)
}

func TestDecoder_BatchedChunk(t *testing.T) {
	body := `[[6,[{"targetChange":{"targetChangeType":"ADD","targetIds":[2]}}]],[7,["noop"]]]`
	dec := NewDecoder(bytes.NewReader(EncodeChunk([]byte(body))))

	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.Seq)
	assert.JSONEq(t, `{"targetChange":{"targetChangeType":"ADD","targetIds":[2]}}`, string(f.Payload[0]))

	f, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.Seq)
	assert.Equal(t, `"noop"`, string(f.Payload[0]))

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_ToleratesBlankLinesAndCRLF(t *testing.T) {
	stream := "\n\r\n6\r\n[1,[]]\n"
	dec := NewDecoder(strings.NewReader(stream))

	f, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.Seq)
	assert.Empty(t, f.Payload)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		kind   error
	}{
		{"non-digit length", "1x\n[1,[]]", pkgerrors.ErrFraming},
		{"negative length", "-5\n[1,[]]", pkgerrors.ErrFraming},
		{"truncated payload", "20\n[1,[]]", pkgerrors.ErrFraming},
		{"length without newline", "12", pkgerrors.ErrFraming},
		{"payload not an array", "4\n{\"\"}", pkgerrors.ErrFraming},
		{"seq not a number", "5\n[\"a\"]", pkgerrors.ErrProtocol},
		{"content not an array", "6\n[1,{}]", pkgerrors.ErrProtocol},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewDecoder(strings.NewReader(test.stream)).Next()
			require.Error(t, err)
			assert.ErrorIs(t, err, test.kind)
			assert.NotEqual(t, io.EOF, err)
		})
	}
}

func TestDecoder_LengthCountsUTF16Units(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		units   int
	}{
		{"ascii", `[1,["noop"]]`, 12},
		{"latin diacritics", `[7,[{"documentChange":{"document":{"name":"Pořady"},"targetIds":[2]}}]]`, 71},
		{"cjk", `["番組"]`, 6},
		{"astral plane", `["🎬 film"]`, 11},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			chunk := EncodeChunk([]byte(test.payload))
			assert.True(t, strings.HasPrefix(string(chunk), fmt.Sprintf("%d\n", test.units)))

			// a second chunk right behind must stay in sync
			stream := append(chunk, EncodeChunk([]byte(`[9,[]]`))...)
			dec := NewDecoder(bytes.NewReader(stream))
			got, err := dec.ReadChunk()
			require.NoError(t, err)
			assert.Equal(t, test.payload, string(got))

			next, err := dec.ReadChunk()
			require.NoError(t, err)
			assert.Equal(t, `[9,[]]`, string(next))
		})
	}
}

func TestDecoder_DocumentWithDiacritics(t *testing.T) {
	body := `[7,[{"documentChange":{"document":{"name":"Pořady"},"targetIds":[2]}}]]`
	stream := fmt.Sprintf("%d\n%s", len([]rune(body)), body)

	f, err := NewDecoder(strings.NewReader(stream)).Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.Seq)
	require.Len(t, f.Payload, 1)
	assert.Contains(t, string(f.Payload[0]), "Pořady")
}

func TestDecoder_LengthSplittingSurrogatePair(t *testing.T) {
	// "🎬" is two UTF-16 units; a length of 2 ends inside it
	_, err := NewDecoder(strings.NewReader("2\n\"🎬\"")).ReadChunk()
	assert.ErrorIs(t, err, pkgerrors.ErrFraming)
}

func TestDecoder_HugeLengthWithoutPayload(t *testing.T) {
	stream := fmt.Sprintf("%d\n[1,[]]", MaxChunkSize)
	_, err := NewDecoder(strings.NewReader(stream)).ReadChunk()
	assert.ErrorIs(t, err, pkgerrors.ErrFraming)

	_, err = NewDecoder(strings.NewReader(fmt.Sprintf("%d\n[]", MaxChunkSize+1))).ReadChunk()
	assert.ErrorIs(t, err, pkgerrors.ErrFraming)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDecoder_ReadFailureIsTransport(t *testing.T) {
	reset := errors.New("connection reset by peer")

	_, err := NewDecoder(failingReader{err: reset}).ReadChunk()
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrTransport)
	assert.ErrorIs(t, err, reset)

	r := io.MultiReader(strings.NewReader("10\n[1,"), failingReader{err: reset})
	_, err = NewDecoder(r).ReadChunk()
	assert.ErrorIs(t, err, pkgerrors.ErrTransport)
}

func TestEncodeFrames_Shapes(t *testing.T) {
	single, err := EncodeFrames(Frame{Seq: 4})
	require.NoError(t, err)
	assert.Equal(t, "6\n[4,[]]", string(single))

	batch, err := EncodeFrames(Frame{Seq: 4}, Frame{Seq: 5, Payload: []json.RawMessage{json.RawMessage(`"noop"`)}})
	require.NoError(t, err)
	assert.Equal(t, "21\n[[4,[]],[5,[\"noop\"]]]", string(batch))
}

func BenchmarkDecoder_Next(b *testing.B) {
	chunk, _ := EncodeFrames(Frame{Seq: 1, Payload: []json.RawMessage{
		json.RawMessage(`{"documentChange":{"document":{"name":"a","fields":{}},"targetIds":[2]}}`),
	}})
	stream := bytes.Repeat(chunk, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dec := NewDecoder(bytes.NewReader(stream))
		for {
			if _, err := dec.Next(); err != nil {
				break
			}
		}
	}
}
