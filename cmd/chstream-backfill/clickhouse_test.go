// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/bureau-foundation/chstream/lib/config"
	"github.com/bureau-foundation/chstream/lib/cursor"
	"github.com/bureau-foundation/chstream/lib/insert"
	"github.com/bureau-foundation/chstream/lib/rowbinary"
)

func testClient(t *testing.T, serverURL, compression string) *client {
	t.Helper()
	c, err := newClient(config.ServerConfig{
		URL:         serverURL,
		Database:    "analytics",
		User:        "backfill",
		Password:    "secret",
		Compression: compression,
	})
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	return c
}

// encodeSystemColumns builds the response body of the system.columns
// query.
func encodeSystemColumns(t *testing.T, rows []systemColumn) []byte {
	t.Helper()
	columns := []chtype.Column{
		{Name: "name", Type: chtype.String},
		{Name: "type", Type: chtype.String},
		{Name: "default_kind", Type: chtype.String},
	}
	w := chwire.NewWriter(0)
	chwire.WriteColumnsHeader(w, columns)
	md, err := rowbinary.Resolve[systemColumn](columns)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range rows {
		if err := rowbinary.EncodeRow(w, md, row); err != nil {
			t.Fatal(err)
		}
	}
	return w.Bytes()
}

func TestFetchSchema(t *testing.T) {
	body := encodeSystemColumns(t, []systemColumn{
		{Name: "project_id", Type: "String"},
		{Name: "start_time", Type: "DateTime64(9)"},
		{Name: "derived", Type: "UInt64", DefaultKind: "MATERIALIZED"},
	})
	var gotQuery string
	var gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sql, _ := io.ReadAll(r.Body)
		gotQuery = string(sql)
		gotUser = r.Header.Get("X-ClickHouse-User")
		w.Write(body)
	}))
	defer server.Close()

	c := testClient(t, server.URL, "none")
	schema, err := c.FetchSchema(context.Background(), "events")
	if err != nil {
		t.Fatalf("FetchSchema: %v", err)
	}
	if len(schema) != 3 {
		t.Fatalf("schema = %+v", schema)
	}
	if schema[1].Type.Kind != chtype.KindDateTime64 {
		t.Errorf("start_time type = %s", schema[1].Type)
	}
	if schema[2].Default != insert.DefaultMaterialized {
		t.Errorf("derived default = %v", schema[2].Default)
	}
	if !strings.Contains(gotQuery, "system.columns") || !strings.Contains(gotQuery, "'events'") {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUser != "backfill" {
		t.Errorf("user header = %q", gotUser)
	}
}

func TestFetchSchemaUnknownTable(t *testing.T) {
	body := encodeSystemColumns(t, nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	c := testClient(t, server.URL, "none")
	_, err := c.FetchSchema(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("error = %v", err)
	}
}

func TestRowCount(t *testing.T) {
	columns := []chtype.Column{{Name: "count()", Type: chtype.UInt64}}
	w := chwire.NewWriter(0)
	chwire.WriteColumnsHeader(w, columns)
	md, err := rowbinary.Resolve[uint64](columns)
	if err != nil {
		t.Fatal(err)
	}
	if err := rowbinary.EncodeRow(w, md, uint64(123456)); err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Write(w.Bytes())
	}))
	defer server.Close()

	c := testClient(t, server.URL, "none")
	count, err := c.rowCount(context.Background(), "SELECT count() FROM t")
	if err != nil {
		t.Fatalf("rowCount: %v", err)
	}
	if count != 123456 {
		t.Fatalf("count = %d", count)
	}
}

func TestQueryServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Code: 60. DB::Exception: Table analytics.missing does not exist", http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(t, server.URL, "none")
	_, err := c.query(context.Background(), "SELECT 1")
	if err == nil || !strings.Contains(err.Error(), "Code: 60") {
		t.Fatalf("error = %v", err)
	}
}

// TestInsertThroughClient drives the real insert pipeline against a
// fake server and decodes what arrived.
func TestInsertThroughClient(t *testing.T) {
	received := make(chan []byte, 1)
	var gotTarget string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = r.URL.Query().Get("query")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		received <- body
	}))
	defer server.Close()

	schema := []insert.TableColumn{
		{Name: "project_id", Type: chtype.String},
		{Name: "trace_id", Type: chtype.UUID},
		{Name: "span_id", Type: chtype.UUID},
		{Name: "name", Type: chtype.String},
		{Name: "kind", Type: chtype.String},
		{Name: "start_time", Type: mustParse(t, "DateTime64(9)")},
		{Name: "duration_ns", Type: chtype.Int64},
		{Name: "tags", Type: mustParse(t, "Array(String)")},
		{Name: "attributes", Type: mustParse(t, "Map(String, String)")},
		{Name: "status_code", Type: chtype.Int8},
	}

	c := testClient(t, server.URL, "none")
	ins, err := insert.New[span](context.Background(), c, "events", schema, insert.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := span{
		ProjectID:  "p-1",
		Name:       "GET /",
		Kind:       "server",
		StartTime:  1700000000000000000,
		DurationNS: 250000,
		Tags:       []string{"http"},
		Attributes: map[string]string{"status": "200"},
		StatusCode: 1,
	}
	if err := ins.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := ins.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if !strings.Contains(gotTarget, "INSERT INTO events") {
		t.Errorf("query param = %q", gotTarget)
	}
	body := <-received
	rows := cursor.NewRows[span](bytestream.NewSliceSource(body), cursor.Options{})
	got, err := rows.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].ProjectID != want.ProjectID || got[0].Attributes["status"] != "200" {
		t.Fatalf("got = %+v", got)
	}
}

func mustParse(t *testing.T, s string) *chtype.Type {
	t.Helper()
	parsed, err := chtype.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}
