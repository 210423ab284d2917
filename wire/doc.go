// Package wire implements the framing and request encoding of the listen channel.
//
// The server pushes a single ordered stream of chunks over repeated long-poll GETs.
// Each chunk is an ASCII decimal length, a newline and exactly that many bytes of JSON:
//
//	42
//	[[6,[{"targetChange":{"targetChangeType":"ADD","targetIds":[2]}}]]]
//
// A chunk carries either one stream entry [seq, [content...]] or a batch of them.
// Decoder.Next flattens both forms into Frame values in stream order.
//
// Commands travel the other way as form-encoded batches:
//
//	count=1&ofs=3&req0___data__=%7B%22database%22...
//
// and their synchronous response is a single acknowledgement chunk [flag, seq, outstanding]
// read with ParseAck. The first command of a session is the handshake, whose response
// carries the "c" control message parsed by ParseHandshake.
package wire
