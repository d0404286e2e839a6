// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/config"
	"github.com/bureau-foundation/chstream/lib/cursor"
	"github.com/bureau-foundation/chstream/lib/frame"
	"github.com/bureau-foundation/chstream/lib/insert"
)

// client talks to the database over its HTTP interface. It implements
// insert.Transport for the write path and insert.SchemaFetcher for
// column metadata.
type client struct {
	base     string
	database string
	user     string
	password string

	// method is the compression applied to insert bodies. Responses,
	// when compressed, always arrive in LZ4 frames: that is the only
	// method the HTTP interface emits.
	method frame.Method

	http *http.Client
}

func newClient(cfg config.ServerConfig) (*client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, fmt.Errorf("server URL is empty")
	}
	var method frame.Method
	switch cfg.Compression {
	case "lz4":
		method = frame.LZ4
	case "zstd":
		method = frame.Zstd
	case "none":
	default:
		return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
	}
	return &client{
		base:     base,
		database: cfg.Database,
		user:     cfg.User,
		password: cfg.Password,
		method:   method,
		http:     &http.Client{},
	}, nil
}

// compressed reports whether transfer compression is enabled.
func (c *client) compressed() bool { return c.method != 0 }

// responseCompression is the frame method of query responses, zero
// when compression is off.
func (c *client) responseCompression() frame.Method {
	if c.compressed() {
		return frame.LZ4
	}
	return 0
}

func (c *client) endpoint(params url.Values) string {
	params.Set("database", c.database)
	return c.base + "/?" + params.Encode()
}

func (c *client) authenticate(req *http.Request) {
	req.Header.Set("X-ClickHouse-User", c.user)
	req.Header.Set("X-ClickHouse-Key", c.password)
}

// query runs sql and returns the raw response body. The caller owns
// the returned reader and must close it.
func (c *client) query(ctx context.Context, sql string) (io.ReadCloser, error) {
	params := url.Values{}
	if c.compressed() {
		params.Set("compress", "1")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(params), strings.NewReader(sql))
	if err != nil {
		return nil, err
	}
	c.authenticate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, httpError(resp)
	}
	return resp.Body, nil
}

// Do streams one insert body to the server. Implements
// insert.Transport: chunks are consumed until the channel closes, then
// the server's verdict is returned.
func (c *client) Do(ctx context.Context, table string, chunks <-chan []byte) error {
	pr, pw := io.Pipe()
	go func() {
		for {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					pw.Close()
					return
				}
				if _, err := pw.Write(chunk); err != nil {
					return
				}
			case <-ctx.Done():
				pw.CloseWithError(ctx.Err())
				return
			}
		}
	}()

	params := url.Values{}
	params.Set("query", fmt.Sprintf("INSERT INTO %s FORMAT RowBinaryWithNamesAndTypes", table))
	if c.compressed() {
		params.Set("decompress", "1")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(params), pr)
	if err != nil {
		return err
	}
	c.authenticate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return nil
}

// systemColumn is one row of the system.columns query.
type systemColumn struct {
	Name        string `ch:"name"`
	Type        string `ch:"type"`
	DefaultKind string `ch:"default_kind"`
}

// FetchSchema implements insert.SchemaFetcher by querying
// system.columns.
func (c *client) FetchSchema(ctx context.Context, table string) ([]insert.TableColumn, error) {
	sql := fmt.Sprintf(
		"SELECT name, type, default_kind FROM system.columns"+
			" WHERE database = currentDatabase() AND table = %s"+
			" ORDER BY position FORMAT RowBinaryWithNamesAndTypes",
		quoteString(table))
	body, err := c.query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rows := cursor.NewRows[systemColumn](bytestream.NewReaderSource(body),
		cursor.Options{Compression: c.responseCompression()})
	raw, err := rows.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema of %q: %w", table, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("table %q does not exist in database %q", table, c.database)
	}

	columns := make([]insert.TableColumn, len(raw))
	for i, row := range raw {
		parsed, err := chtype.Parse(row.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q of %q: %w", row.Name, table, err)
		}
		kind, err := insert.ParseColumnDefault(row.DefaultKind)
		if err != nil {
			return nil, fmt.Errorf("column %q of %q: %w", row.Name, table, err)
		}
		columns[i] = insert.TableColumn{Name: row.Name, Type: parsed, Default: kind}
	}
	return columns, nil
}

// rowCount returns the number of rows a query like
// "SELECT count() FROM ..." reports.
func (c *client) rowCount(ctx context.Context, sql string) (uint64, error) {
	body, err := c.query(ctx, sql+" FORMAT RowBinaryWithNamesAndTypes")
	if err != nil {
		return 0, err
	}
	defer body.Close()

	rows := cursor.NewRows[uint64](bytestream.NewReaderSource(body),
		cursor.Options{Compression: c.responseCompression()})
	counts, err := rows.Collect(ctx)
	if err != nil {
		return 0, err
	}
	if len(counts) != 1 {
		return 0, fmt.Errorf("count query returned %d rows", len(counts))
	}
	return counts[0], nil
}

func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, message)
}

// quoteString renders a SQL string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}
