package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wrappedBody = `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","status":"ok","table":{"cols":[{"id":"A","label":" ID ","type":"string"},{"id":"B","label":"Status","type":"string"},{"id":"C","type":"number"}],"rows":[{"c":[{"v":"S1"},{"v":"New"},{"v":3}]},{"c":[{"v":"S2"},null,{"v":null}]}]}});`

func TestParseStripsWrapper(t *testing.T) {
	table, err := Parse([]byte(wrappedBody))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Status", ""}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"S1", "New", float64(3)}, table.Rows[0])
	assert.Equal(t, []any{"S2", "", ""}, table.Rows[1])
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no braces":     "not json at all",
		"invalid json":  "prefix({\"table\": );",
		"missing table": `cb({"status":"error"});`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestLocateColumnPrefersExactMatch(t *testing.T) {
	table := Table{Headers: []string{"Status Notes", "STATUS", "Owner"}}

	idx, err := table.LocateColumn("status")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	table = Table{Headers: []string{"ID", "Current status"}}
	idx, err = table.LocateColumn("status")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = Table{Headers: []string{"ID"}}.LocateColumn("status")
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "status", missing.Column)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", CellString(nil))
	assert.Equal(t, "2025", CellString(float64(2025)))
	assert.Equal(t, "1.5", CellString(1.5))
	assert.Equal(t, "false", CellString(false))
	assert.Equal(t, "x", CellString("x"))
	assert.Equal(t, "", Cell([]any{"a"}, 3))
}

func TestClientFetch(t *testing.T) {
	var gotPath, gotTqx, gotSheet string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTqx = r.URL.Query().Get("tqx")
		gotSheet = r.URL.Query().Get("sheet")
		_, _ = w.Write([]byte(wrappedBody))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Host: srv.URL})
	table, err := client.Fetch(context.Background(), "sheet-123", "Progress 2025")
	require.NoError(t, err)

	assert.Equal(t, "/d/sheet-123/gviz/tq", gotPath)
	assert.Equal(t, "out:json", gotTqx)
	assert.Equal(t, "Progress 2025", gotSheet)
	assert.Len(t, table.Rows, 2)
}

func TestClientFetchOmitsSheetWhenEmpty(t *testing.T) {
	client := NewClient(ClientConfig{Host: "https://sheets.example.com/"})
	assert.Equal(t, "https://sheets.example.com/d/abc/gviz/tq?tqx=out%3Ajson", client.URL("abc", ""))
}

func TestClientFetchNonSuccessIsNetworkError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Host: srv.URL})
	_, err := client.Fetch(context.Background(), "id", "")

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Equal(t, 1, calls, "no retry")
}

func TestClientFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(ClientConfig{Host: srv.URL})
	_, err := client.Fetch(context.Background(), "id", "")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Zero(t, netErr.StatusCode)
}
