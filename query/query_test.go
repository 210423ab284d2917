package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

func TestBuilder_InQuery(t *testing.T) {
	q, err := NewBuilder().
		Parent("/docs").
		From("videos").
		Where(In("id", Strings("a", "b")...)).
		Build()
	require.NoError(t, err)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parent": "/docs",
		"structuredQuery": {
			"from": [{"collectionId": "videos"}],
			"where": {"fieldFilter": {
				"field": {"fieldPath": "id"},
				"op": "IN",
				"value": {"arrayValue": {"values": [{"stringValue": "a"}, {"stringValue": "b"}]}}
			}}
		}
	}`, string(data))
}

func TestBuilder_FullQuery(t *testing.T) {
	q, err := NewBuilder().
		Parent("projects/p/databases/(default)/documents").
		From("episodes").
		Where(Equal("show", Reference("projects/p/databases/(default)/documents/shows/1"))).
		Where(Equal("season", Integer(3))).
		OrderBy("number", Ascending).
		OrderBy("aired", Descending).
		Limit(10).
		Build()
	require.NoError(t, err)

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parent": "projects/p/databases/(default)/documents",
		"structuredQuery": {
			"from": [{"collectionId": "episodes"}],
			"where": {"compositeFilter": {"op": "AND", "filters": [
				{"fieldFilter": {"field": {"fieldPath": "show"}, "op": "EQUAL",
					"value": {"referenceValue": "projects/p/databases/(default)/documents/shows/1"}}},
				{"fieldFilter": {"field": {"fieldPath": "season"}, "op": "EQUAL",
					"value": {"integerValue": "3"}}}
			]}},
			"orderBy": [
				{"field": {"fieldPath": "number"}, "direction": "ASCENDING"},
				{"field": {"fieldPath": "aired"}, "direction": "DESCENDING"}
			],
			"limit": 10
		}
	}`, string(data))
}

func TestBuilder_BuildResets(t *testing.T) {
	b := NewBuilder()
	first, err := b.Parent("/docs").From("videos").Where(Equal("id", String("a"))).Limit(1).Build()
	require.NoError(t, err)
	require.NotNil(t, first.StructuredQuery.Where)

	second, err := b.From("shows").Build()
	require.NoError(t, err)
	assert.Equal(t, "", second.Parent)
	assert.Equal(t, []CollectionSelector{{CollectionID: "shows"}}, second.StructuredQuery.From)
	assert.Nil(t, second.StructuredQuery.Where)
	assert.Nil(t, second.StructuredQuery.Limit)

	// the first result is unaffected by later builds
	assert.Equal(t, "videos", first.StructuredQuery.From[0].CollectionID)
}

func TestBuilder_ResetsAfterError(t *testing.T) {
	b := NewBuilder()
	_, err := b.Where(Equal("id", String("a"))).Build()
	require.Error(t, err)

	q, err := b.From("videos").Build()
	require.NoError(t, err)
	assert.Nil(t, q.StructuredQuery.Where)
}

func TestBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Query, error)
	}{
		{"no collection", func() (Query, error) {
			return NewBuilder().Parent("/docs").Build()
		}},
		{"negative limit", func() (Query, error) {
			return NewBuilder().From("videos").Limit(-1).Build()
		}},
		{"empty in list", func() (Query, error) {
			return NewBuilder().From("videos").Where(In("id")).Build()
		}},
		{"array in equality", func() (Query, error) {
			return NewBuilder().From("videos").Where(Equal("id", Array(String("a")))).Build()
		}},
		{"nested array in list", func() (Query, error) {
			return NewBuilder().From("videos").Where(ArrayContainsAny("tags", Array(String("a")))).Build()
		}},
		{"missing field path", func() (Query, error) {
			return NewBuilder().From("videos").Where(Equal("", String("a"))).Build()
		}},
		{"bad direction", func() (Query, error) {
			return NewBuilder().From("videos").OrderBy("id", "SIDEWAYS").Build()
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := test.build()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "array contains",
			filter: ArrayContains("tags", String("news")),
			want:   `{"fieldFilter":{"field":{"fieldPath":"tags"},"op":"ARRAY_CONTAINS","value":{"stringValue":"news"}}}`,
		},
		{
			name:   "array contains any",
			filter: ArrayContainsAny("ids", Integer(1), Integer(2)),
			want: `{"fieldFilter":{"field":{"fieldPath":"ids"},"op":"ARRAY_CONTAINS_ANY",` +
				`"value":{"arrayValue":{"values":[{"integerValue":"1"},{"integerValue":"2"}]}}}}`,
		},
		{
			name:   "single and collapses",
			filter: And(Equal("id", String("x"))),
			want:   `{"fieldFilter":{"field":{"fieldPath":"id"},"op":"EQUAL","value":{"stringValue":"x"}}}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.NoError(t, test.filter.Validate())
			data, err := json.Marshal(test.filter)
			require.NoError(t, err)
			assert.JSONEq(t, test.want, string(data))
		})
	}
}

func TestTarget_Validate(t *testing.T) {
	q, err := NewBuilder().From("videos").Build()
	require.NoError(t, err)

	assert.NoError(t, ForQuery(q).Validate())
	assert.NoError(t, ForDocuments("projects/p/databases/(default)/documents/videos/a").Validate())

	assert.Error(t, Target{}.Validate())
	assert.Error(t, ForDocuments().Validate())
	assert.Error(t, ForDocuments("a", "").Validate())
	assert.Error(t, ForQuery(Query{}).Validate())
	both := ForQuery(q)
	both.Documents = &Documents{Documents: []string{"a"}}
	assert.Error(t, both.Validate())
}

func TestDocuments_JSON(t *testing.T) {
	data, err := json.Marshal(ForDocuments("a/b", "a/c").Documents)
	require.NoError(t, err)
	assert.JSONEq(t, `{"documents":["a/b","a/c"]}`, string(data))
}
