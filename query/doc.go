// Package query builds the structured query descriptors embedded in subscribe commands.
//
// A Builder accumulates a parent path, collections, an optional filter, orderings and a limit:
//
//	q, err := query.NewBuilder().
//	    Parent("projects/p/databases/(default)/documents").
//	    From("videos").
//	    Where(query.In("id", query.String("a"), query.String("b"))).
//	    OrderBy("episode", query.Ascending).
//	    Limit(50).
//	    Build()
//
// Build resets the builder, so the same Builder can produce several independent queries.
// The resulting Query is plain data; it is serialized by the wire package.
package query
