package wire

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// ParseAck reads the acknowledgement chunk of a command POST and returns its seq.
// The chunk is [flag, seq, outstanding]; seq must be a positive integer.
func ParseAck(r io.Reader) (int64, error) {
	chunk, err := NewDecoder(r).ReadChunk()
	if err == io.EOF {
		return 0, errors.Protocol(nil, "wire", "ParseAck", "read acknowledgement")
	}
	if err != nil {
		return 0, err
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(chunk, &elems); err != nil {
		return 0, errors.Protocol(err, "wire", "ParseAck", "parse acknowledgement")
	}
	if len(elems) < 2 {
		return 0, errors.Protocol(nil, "wire", "ParseAck",
			"read seq from "+strconv.Itoa(len(elems))+" element acknowledgement")
	}

	seq, err := parseSeq(elems[1])
	if err != nil || seq <= 0 {
		return 0, errors.Protocol(nil, "wire", "ParseAck", "validate seq "+string(elems[1]))
	}
	return seq, nil
}

// Handshake is the session information returned by the session-opening POST.
type Handshake struct {
	SessionID  string
	ServerID   string
	HostPrefix string
	Version    int
	// Frames holds the entries that followed the control message in the same body.
	Frames []Frame
}

// ParseHandshake reads the handshake response: the "c" control message
// ["c", SID, hostPrefix, VER, ...] and the server id header.
func ParseHandshake(r io.Reader, header http.Header) (Handshake, error) {
	hs := Handshake{ServerID: header.Get(SessionHeader)}
	dec := NewDecoder(r)

	found := false
	for {
		f, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Handshake{}, err
		}
		if !found && isControl(f) {
			if err := hs.readControl(f.Payload); err != nil {
				return Handshake{}, err
			}
			found = true
			continue
		}
		hs.Frames = append(hs.Frames, f)
	}

	if !found {
		return Handshake{}, errors.Session(nil, "wire", "ParseHandshake", "find control message")
	}
	if hs.SessionID == "" {
		return Handshake{}, errors.Session(nil, "wire", "ParseHandshake", "read session id")
	}
	return hs, nil
}

func isControl(f Frame) bool {
	if len(f.Payload) == 0 {
		return false
	}
	var tag string
	return json.Unmarshal(f.Payload[0], &tag) == nil && tag == "c"
}

func (hs *Handshake) readControl(payload []json.RawMessage) error {
	if len(payload) < 2 {
		return errors.Session(nil, "wire", "ParseHandshake", "read session id")
	}
	if err := json.Unmarshal(payload[1], &hs.SessionID); err != nil {
		return errors.Session(err, "wire", "ParseHandshake", "read session id")
	}
	if len(payload) > 2 {
		// host prefix may be null
		_ = json.Unmarshal(payload[2], &hs.HostPrefix)
	}
	if len(payload) > 3 {
		_ = json.Unmarshal(payload[3], &hs.Version)
	}
	return nil
}
