// Package listenclient is a client for the real-time listen channel of a document
// database: a bidirectional HTTP long-poll session over which a client subscribes
// structured queries and document lists, then receives the matching documents as an
// ordered stream of numbered messages.
//
// # Layers
//
// The module is split the way the data flows:
//
//   - wire: session URLs, the batched form-encoded command body and the
//     length-prefixed chunk framing of the stream
//   - query: the structured query descriptor and its builder
//   - listen: the Channel facade, the stream reader, the message store and the
//     correlator that turns one subscription into its initial result set
//   - pool: several channels behind one API, with reopen on failure and an optional
//     document cache
//   - natsclient: republishes collected documents on NATS subjects
//
// # Ambient packages
//
// errors classifies failures as transient, invalid or fatal. metric carries the
// Prometheus collectors, health the status snapshots, config the layered JSON/YAML
// loader. pkg/retry, pkg/cache, pkg/worker and pkg/tlsutil are small helpers used by
// the pool and the command.
//
// # Usage
//
//	ch, err := listen.Open(ctx, baseURL, "projects/p/databases/(default)", token)
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
//
//	q, err := query.NewBuilder().
//	    Parent("projects/p/databases/(default)/documents").
//	    From("orders").
//	    Where(query.Equal("status", query.String("open"))).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	docs, err := ch.Collect(ctx, q)
//
// cmd/listenctl wraps the same flow in a command-line tool.
//
// # Testing
//
// testutil.ListenServer is a scripted httptest endpoint that speaks the protocol;
// package tests run against it. Tests tagged integration start NATS in a container
// through testcontainers-go.
package listenclient
