// Package natsclient publishes collected documents to NATS with circuit breaker protection
// on the connection.
//
// A Client walks through the states Disconnected, Connecting, Connected and Reconnecting.
// Consecutive connect or JetStream failures (default: 5) open the circuit; operations then
// fail fast with ErrCircuitOpen until the backoff elapses, and the backoff doubles up to
// WithMaxBackoff for every further round of failures.
//
// # Basic Usage
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	subject := natsclient.SubjectFor("listen.documents", "items")
//	n, err := client.PublishDocuments(ctx, subject, docs)
//
// Every document becomes one message. PublishDocuments stops at the first failure and
// reports how many documents went out before it.
//
// # JetStream
//
// With WithJetStream, PublishDocuments publishes through JetStream and waits for each
// ack. Create the stream first:
//
//	_, err := client.EnsureStream(ctx, "LISTEN_DOCUMENTS", "listen.documents.>")
//
// # Testing
//
// NewTestClient starts a NATS server in a testcontainer and returns a connected client.
// Unit tests that only need the publish call use the Publisher interface, which
// testutil.MockNATSClient satisfies.
package natsclient
