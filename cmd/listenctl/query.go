package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/query"
)

// referencePrefix marks a filter value as a document reference
const referencePrefix = "ref:"

// buildQueries returns one query per -collection, sharing the filter, order and limit
// flags. A relative -parent is resolved against root, the database documents path.
func buildQueries(cfg *CLIConfig, root string) ([]query.Query, error) {
	filters := make([]query.Filter, 0, len(cfg.Where)+len(cfg.In))
	for _, w := range cfg.Where {
		field, raw, err := splitField("where", w)
		if err != nil {
			return nil, err
		}
		filters = append(filters, query.Equal(field, parseValue(raw)))
	}
	for _, in := range cfg.In {
		field, raw, err := splitField("in", in)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(raw, ",")
		values := make([]query.Value, len(parts))
		for i, p := range parts {
			values[i] = parseValue(p)
		}
		filters = append(filters, query.In(field, values...))
	}

	type ordering struct {
		field string
		dir   query.Direction
	}
	orders := make([]ordering, 0, len(cfg.Order))
	for _, o := range cfg.Order {
		field, dir, err := parseOrder(o)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ordering{field: field, dir: dir})
	}

	if cfg.Limit > math.MaxInt32 {
		return nil, fmt.Errorf("invalid limit: %d", cfg.Limit)
	}

	queries := make([]query.Query, 0, len(cfg.Collections))
	b := query.NewBuilder()
	for _, collection := range cfg.Collections {
		b.Parent(resolvePath(root, cfg.Parent)).From(collection)
		for _, f := range filters {
			b.Where(f)
		}
		for _, o := range orders {
			b.OrderBy(o.field, o.dir)
		}
		if cfg.Limit > 0 {
			b.Limit(int32(cfg.Limit))
		}
		q, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("build query for %s: %w", collection, err)
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func splitField(flagName, s string) (string, string, error) {
	field, value, ok := strings.Cut(s, "=")
	if !ok || field == "" {
		return "", "", fmt.Errorf("invalid -%s %q: expected field=value", flagName, s)
	}
	return field, value, nil
}

// parseValue types a filter value: integers become integer values, ref:<path> becomes a
// reference and a double-quoted value is always a string.
func parseValue(s string) query.Value {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return query.String(s[1 : len(s)-1])
	}
	if path, ok := strings.CutPrefix(s, referencePrefix); ok {
		return query.Reference(path)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return query.Integer(n)
	}
	return query.String(s)
}

func parseOrder(s string) (string, query.Direction, error) {
	field, dir, _ := strings.Cut(s, ":")
	if field == "" {
		return "", "", fmt.Errorf("invalid -order %q: empty field", s)
	}
	switch strings.ToLower(dir) {
	case "", "asc":
		return field, query.Ascending, nil
	case "desc":
		return field, query.Descending, nil
	default:
		return "", "", fmt.Errorf("invalid -order %q: direction must be asc or desc", s)
	}
}

// resolvePath joins a relative document path onto root. Absolute resource names starting
// with "projects/" are returned unchanged.
func resolvePath(root, path string) string {
	path = strings.Trim(path, "/")
	switch {
	case path == "":
		return root
	case strings.HasPrefix(path, "projects/"):
		return path
	default:
		return root + "/" + path
	}
}
