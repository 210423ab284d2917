// Package errors provides standardized error handling for the listen channel client.
//
// # Overview
//
// Errors carry two independent pieces of information:
//
//   - a class (Transient, Invalid, Fatal) that tells a collaborator whether reopening a
//     channel is worthwhile;
//   - for errors raised by the wire codec or the channel, a taxonomy kind matched with
//     errors.Is: ErrFraming, ErrProtocol, ErrTransport, ErrSession or ErrChannelClosed.
//
// The taxonomy constructors fix the class of each kind:
//
//	errors.Framing(err, "Decoder", "Next", "read length prefix")   // Fatal
//	errors.Protocol(err, "Channel", "AddTarget", "parse ack")      // Invalid
//	errors.Transport(err, "Reader", "poll", "streaming GET")       // Transient
//	errors.Session(err, "Channel", "Open", "handshake")            // Transient
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Wrap preserves whatever classification the wrapped error already carries;
// WrapTransient, WrapInvalid and WrapFatal set one explicitly.
//
// # Channel failure
//
// A stream reader that hits a framing or transport error stores it. Every blocked or later
// correlation wait on that channel returns the stored error, so callers can test it with
// errors.Is(err, errors.ErrTransport) and discard the channel. context.Canceled is
// deliberately not transient: it means the caller gave up.
package errors
