package listen

// Session identifies an open listen session. It never changes after the handshake.
type Session struct {
	// ClientID is generated locally for the lifetime of the channel
	ClientID string
	// SessionID is the SID assigned by the handshake control message
	SessionID string
	// ServerID is the gsessionid reported in the handshake response header, possibly empty
	ServerID string
}
