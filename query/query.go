package query

import (
	"fmt"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Direction is an ordering direction.
type Direction string

// Ordering directions
const (
	Ascending  Direction = "ASCENDING"
	Descending Direction = "DESCENDING"
)

// CollectionSelector names a collection to query.
type CollectionSelector struct {
	CollectionID string `json:"collectionId"`
}

// Order orders results by one field.
type Order struct {
	Field     FieldReference `json:"field"`
	Direction Direction      `json:"direction"`
}

// StructuredQuery is the filter/order/limit descriptor.
type StructuredQuery struct {
	From    []CollectionSelector `json:"from"`
	Where   *Filter              `json:"where,omitempty"`
	OrderBy []Order              `json:"orderBy,omitempty"`
	Limit   *int32               `json:"limit,omitempty"`
}

// Query is a structured query scoped to a parent document path.
type Query struct {
	StructuredQuery StructuredQuery `json:"structuredQuery"`
	Parent          string          `json:"parent"`
}

// Documents is a raw document reference list.
type Documents struct {
	Documents []string `json:"documents"`
}

// Target is the payload of one subscription: a query or a document list.
type Target struct {
	Query     *Query
	Documents *Documents
}

// ForQuery wraps q as a subscription payload.
func ForQuery(q Query) Target {
	return Target{Query: &q}
}

// ForDocuments wraps document references as a subscription payload.
func ForDocuments(refs ...string) Target {
	return Target{Documents: &Documents{Documents: refs}}
}

// Validate checks that exactly one payload is set and that it is usable.
func (t Target) Validate() error {
	switch {
	case t.Query != nil && t.Documents != nil:
		return invalidTarget("target sets both query and documents")
	case t.Query != nil:
		if len(t.Query.StructuredQuery.From) == 0 {
			return invalidTarget("query without collection")
		}
		if t.Query.StructuredQuery.Where != nil {
			return t.Query.StructuredQuery.Where.Validate()
		}
		return nil
	case t.Documents != nil:
		if len(t.Documents.Documents) == 0 {
			return invalidTarget("empty document list")
		}
		for i, ref := range t.Documents.Documents {
			if ref == "" {
				return invalidTarget(fmt.Sprintf("empty document reference at %d", i))
			}
		}
		return nil
	default:
		return invalidTarget("empty target")
	}
}

func invalidTarget(action string) error {
	return errors.WrapInvalid(errors.ErrInvalidData, "Target", "Validate", action)
}

// Builder accumulates a structured query.
type Builder struct {
	parent  string
	from    []CollectionSelector
	where   []Filter
	orderBy []Order
	limit   *int32
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Parent sets the collection container path.
func (b *Builder) Parent(path string) *Builder {
	b.parent = path
	return b
}

// From adds a collection.
func (b *Builder) From(collection string) *Builder {
	b.from = append(b.from, CollectionSelector{CollectionID: collection})
	return b
}

// Where sets the filter. Repeated calls are AND-combined.
func (b *Builder) Where(f Filter) *Builder {
	b.where = append(b.where, f)
	return b
}

// OrderBy adds an ordering.
func (b *Builder) OrderBy(field string, dir Direction) *Builder {
	b.orderBy = append(b.orderBy, Order{Field: FieldReference{FieldPath: field}, Direction: dir})
	return b
}

// Limit caps the number of results.
func (b *Builder) Limit(n int32) *Builder {
	b.limit = &n
	return b
}

// Build returns the accumulated query and resets the builder.
func (b *Builder) Build() (Query, error) {
	defer b.reset()

	if len(b.from) == 0 {
		return Query{}, errors.WrapInvalid(errors.ErrInvalidData, "Builder", "Build", "query without collection")
	}
	if b.limit != nil && *b.limit < 0 {
		return Query{}, errors.WrapInvalid(errors.ErrInvalidData, "Builder", "Build",
			fmt.Sprintf("limit %d", *b.limit))
	}
	for _, o := range b.orderBy {
		if o.Field.FieldPath == "" || (o.Direction != Ascending && o.Direction != Descending) {
			return Query{}, errors.WrapInvalid(errors.ErrInvalidData, "Builder", "Build",
				fmt.Sprintf("order by %q %q", o.Field.FieldPath, o.Direction))
		}
	}

	q := Query{
		Parent: b.parent,
		StructuredQuery: StructuredQuery{
			From:    b.from,
			OrderBy: b.orderBy,
			Limit:   b.limit,
		},
	}
	if len(b.where) > 0 {
		where := And(b.where...)
		if err := where.Validate(); err != nil {
			return Query{}, err
		}
		q.StructuredQuery.Where = &where
	}
	return q, nil
}

func (b *Builder) reset() {
	*b = Builder{}
}
