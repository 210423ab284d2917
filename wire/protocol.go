package wire

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Protocol constants
const (
	DefaultProtocolVersion = 8
	DefaultClientVersion   = 22

	// SessionHeader carries the server id (gsessionid) on the handshake response
	SessionHeader = "X-HTTP-Session-Id"
	// FormContentType is the content type of command POST bodies
	FormContentType = "application/x-www-form-urlencoded"

	streamRequestID = "rpc"
	streamType      = "xmlhttp"
)

// Params holds the per-request values of a listen URL.
type Params struct {
	Database        string
	ProtocolVersion int
	ClientVersion   int
	SessionID       string // SID
	ServerID        string // gsessionid
	RequestID       int64  // RID, ignored by StreamURL
	AckID           int64  // AID
	Nonce           string // zx, generated when empty
}

// StreamURL builds the long-poll GET target.
func StreamURL(base string, p Params) (string, error) {
	q := p.common()
	q.Set("gsessionid", p.ServerID)
	q.Set("SID", p.SessionID)
	q.Set("RID", streamRequestID)
	q.Set("AID", strconv.FormatInt(p.AckID, 10))
	q.Set("TYPE", streamType)
	return compose(base, q, "StreamURL")
}

// CommandURL builds the target of a command POST on an established session.
func CommandURL(base string, p Params) (string, error) {
	q := p.common()
	q.Set("gsessionid", p.ServerID)
	q.Set("SID", p.SessionID)
	q.Set("RID", strconv.FormatInt(p.RequestID, 10))
	q.Set("AID", strconv.FormatInt(p.AckID, 10))
	return compose(base, q, "CommandURL")
}

// HandshakeURL builds the target of the session-opening POST. No session exists yet,
// so SID and gsessionid are omitted and the server is asked to report its id in a header.
func HandshakeURL(base string, p Params) (string, error) {
	q := p.common()
	q.Set(SessionHeader, "gsessionid")
	q.Set("RID", strconv.FormatInt(p.RequestID, 10))
	return compose(base, q, "HandshakeURL")
}

// Nonce returns a random per-request token for the zx parameter.
func Nonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (p Params) common() url.Values {
	ver := p.ProtocolVersion
	if ver == 0 {
		ver = DefaultProtocolVersion
	}
	cver := p.ClientVersion
	if cver == 0 {
		cver = DefaultClientVersion
	}
	nonce := p.Nonce
	if nonce == "" {
		nonce = Nonce()
	}

	q := url.Values{}
	q.Set("database", p.Database)
	q.Set("VER", strconv.Itoa(ver))
	q.Set("CVER", strconv.Itoa(cver))
	q.Set("zx", nonce)
	q.Set("t", "1")
	return q
}

func compose(base string, q url.Values, method string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.WrapInvalid(err, "wire", method, "parse base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidConfig, "wire", method,
			"validate base URL "+strconv.Quote(base))
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}
