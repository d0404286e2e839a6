// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package insert

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/rowbinary"
)

// ColumnDefault classifies a table column's default expression, as
// reported by system.columns.
type ColumnDefault int

const (
	// DefaultNone marks a column with no default: an insert that
	// omits it is rejected.
	DefaultNone ColumnDefault = iota

	// DefaultValue marks a DEFAULT column: the server fills it when
	// omitted.
	DefaultValue

	// DefaultMaterialized marks a MATERIALIZED column: always
	// computed by the server, never writable.
	DefaultMaterialized

	// DefaultEphemeral marks an EPHEMERAL column: writable input for
	// other defaults, not stored.
	DefaultEphemeral

	// DefaultAlias marks an ALIAS column: a read-time expression,
	// never writable.
	DefaultAlias
)

// ParseColumnDefault maps the default_kind value of system.columns.
func ParseColumnDefault(kind string) (ColumnDefault, error) {
	switch kind {
	case "":
		return DefaultNone, nil
	case "DEFAULT":
		return DefaultValue, nil
	case "MATERIALIZED":
		return DefaultMaterialized, nil
	case "EPHEMERAL":
		return DefaultEphemeral, nil
	case "ALIAS":
		return DefaultAlias, nil
	default:
		return 0, fmt.Errorf("unknown column default kind %q", kind)
	}
}

// writable reports whether an insert may provide a value for the
// column.
func (d ColumnDefault) writable() bool {
	return d != DefaultMaterialized && d != DefaultAlias
}

// hasDefault reports whether the server can fill the column when an
// insert omits it.
func (d ColumnDefault) hasDefault() bool {
	return d != DefaultNone
}

// TableColumn is one column of a table schema as needed for insert
// resolution.
type TableColumn struct {
	Name    string
	Type    *chtype.Type
	Default ColumnDefault
}

// SchemaFetcher retrieves the column schema of a table, typically by
// querying system.columns.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, table string) ([]TableColumn, error)
}

// SchemaCache caches table schemas fetched once per table. Reads are
// concurrent; Invalidate and Clear are safe to call while other
// goroutines read. A stale entry after a server-side table change
// surfaces as a rejected insert, at which point the caller invalidates
// and retries.
type SchemaCache struct {
	fetcher SchemaFetcher

	mu     sync.RWMutex
	tables map[string][]TableColumn
}

func NewSchemaCache(fetcher SchemaFetcher) *SchemaCache {
	return &SchemaCache{fetcher: fetcher, tables: make(map[string][]TableColumn)}
}

// Get returns the cached schema for the table, fetching it on first
// use. Concurrent first uses may fetch more than once; all store the
// same result.
func (c *SchemaCache) Get(ctx context.Context, table string) ([]TableColumn, error) {
	c.mu.RLock()
	schema, ok := c.tables[table]
	c.mu.RUnlock()
	if ok {
		return schema, nil
	}
	schema, err := c.fetcher.FetchSchema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("fetching schema for %q: %w", table, err)
	}
	c.mu.Lock()
	c.tables[table] = schema
	c.mu.Unlock()
	return schema, nil
}

// Invalidate drops the cached schema for one table.
func (c *SchemaCache) Invalidate(table string) {
	c.mu.Lock()
	delete(c.tables, table)
	c.mu.Unlock()
}

// Clear drops all cached schemas.
func (c *SchemaCache) Clear() {
	c.mu.Lock()
	c.tables = make(map[string][]TableColumn)
	c.mu.Unlock()
}

// insertColumns resolves a row type against a table schema into the
// column set the insert will write, in struct field order. Fields
// bound to server-computed columns and non-default columns absent from
// the row type are both rejected, each with its own diagnostic.
func insertColumns(rowType reflect.Type, schema []TableColumn) ([]chtype.Column, error) {
	fieldNames, err := rowbinary.RowFieldNames(rowType)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]TableColumn, len(schema))
	for _, column := range schema {
		byName[column.Name] = column
	}

	if fieldNames == nil {
		// Single-column rows write the table's one writable,
		// non-defaulted column; anything else is ambiguous.
		var candidates []chtype.Column
		for _, column := range schema {
			if column.Default.writable() && !column.Default.hasDefault() {
				candidates = append(candidates, chtype.Column{Name: column.Name, Type: column.Type})
			}
		}
		if len(candidates) != 1 {
			return nil, fmt.Errorf(
				"row type %s binds a single column but table has %d required columns",
				rowType, len(candidates))
		}
		return candidates, nil
	}

	columns := make([]chtype.Column, 0, len(fieldNames))
	provided := make(map[string]bool, len(fieldNames))
	for _, name := range fieldNames {
		column, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("field %q has no matching column in the table (columns: %s)",
				name, tableColumnNames(schema))
		}
		if !column.Default.writable() {
			return nil, fmt.Errorf("field %q is bound to a server-computed column and cannot be inserted", name)
		}
		provided[name] = true
		columns = append(columns, chtype.Column{Name: column.Name, Type: column.Type})
	}

	var missing []string
	for _, column := range schema {
		if !provided[column.Name] && column.Default.writable() && !column.Default.hasDefault() {
			missing = append(missing, column.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("row type %s omits columns with no default: %s",
			rowType, strings.Join(missing, ", "))
	}
	return columns, nil
}

func tableColumnNames(schema []TableColumn) string {
	names := make([]string, len(schema))
	for i, column := range schema {
		names[i] = column.Name
	}
	return strings.Join(names, ", ")
}
