package stats

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarllyZhou/statcn-etl/internal/domain"
)

const treeBody = `{"returndata":[
	{"id":"A01","name":"综合","pid":"zb","isParent":true},
	{"id":"A0101","name":"国内生产总值","pid":"A01","isParent":false}
]}`

const queryBody = `{"returncode":200,"returndata":{
	"datanodes":[
		{"wds":"zb.A0101_reg.110000_sj.2019","data":{"data":35371.3,"hasdata":true,"strdata":"35371.3"}},
		{"wds":"zb.A0101_reg.120000_sj.2019","data":{"data":"","hasdata":false,"strdata":""}},
		{"wds":"zb.A0101_reg.110000","data":{"data":1,"hasdata":true,"strdata":"1"}}
	],
	"wdnodes":[
		{"wdcode":"zb","nodes":[{"code":"A0101","name":"国内生产总值"}]},
		{"wdcode":"reg","nodes":[{"code":"110000","name":"北京市"},{"code":"120000","name":"天津市"}]}
	]
}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(clock clockwork.Clock, endpoints ...string) *Client {
	return NewClient(Options{
		Endpoints:    endpoints,
		BootTimeout:  5 * time.Second,
		QueryTimeout: 5 * time.Second,
	}, clock, discardLogger())
}

func TestClient_BootSession_SeedsCookie(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/english/easyquery.htm":
			assert.Equal(t, "E0102", r.URL.Query().Get("cn"))
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "test-session"})
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/easyquery.htm":
			if c, err := r.Cookie("JSESSIONID"); err == nil && c.Value == "test-session" {
				sawCookie = true
			}
			w.Write([]byte(treeBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	ctx := context.Background()

	require.NoError(t, c.BootSession(ctx, "E0102"))
	_, err := c.FetchTree(ctx, "fsnd", "zb", "E0102")
	require.NoError(t, err)
	assert.True(t, sawCookie, "session cookie should ride subsequent POSTs")
}

func TestClient_BootSession_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	err := c.BootSession(context.Background(), "E0102")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_FetchTree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "getTree", r.PostForm.Get("m"))
		assert.Equal(t, "fsnd", r.PostForm.Get("dbcode"))
		assert.Equal(t, "zb", r.PostForm.Get("id"))
		assert.Equal(t, "reg", r.PostForm.Get("wdcode"))
		assert.Equal(t, "E0102", r.PostForm.Get("cn"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Contains(t, r.Header.Get("Referer"), "cn=E0102")
		w.Write([]byte(treeBody))
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	nodes, err := c.FetchTree(context.Background(), "fsnd", "reg", "E0102")

	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "A01", nodes[0].ID)
	assert.True(t, nodes[0].IsParent)
}

func TestClient_FetchTree_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"returndata":[]}`))
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	_, err := c.FetchTree(context.Background(), "fsnd", "zb", "E0102")
	assert.ErrorIs(t, err, domain.ErrEmpty)
}

func TestClient_FetchSeries(t *testing.T) {
	frozen := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	var gotK1, gotDfwds string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "QueryData", r.PostForm.Get("m"))
		assert.Equal(t, "reg", r.PostForm.Get("rowcode"))
		assert.Equal(t, "sj", r.PostForm.Get("colcode"))
		gotK1 = r.PostForm.Get("k1")
		gotDfwds = r.PostForm.Get("dfwds")
		w.Write([]byte(queryBody))
	}))
	defer srv.Close()

	c := testClient(clockwork.NewFakeClockAt(frozen), srv.URL)
	result, err := c.FetchSeries(context.Background(), "fsnd", "A0101", "E0102")
	require.NoError(t, err)

	assert.Equal(t, "1714144200000", gotK1, "k1 should be the clock's millisecond timestamp")
	assert.JSONEq(t, `[{"wdcode":"zb","valuecode":"A0101"}]`, gotDfwds)

	// Third data node has no year component and is dropped.
	require.Len(t, result.Observations, 2)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, "110000", result.Observations[0].Reg)
	assert.Equal(t, 2019, result.Observations[0].Year)
	require.NotNil(t, result.Observations[0].Value)
	assert.Equal(t, 35371.3, *result.Observations[0].Value)
	assert.Nil(t, result.Observations[1].Value, "empty cell decodes to nil, not zero")

	assert.Equal(t, map[string]string{"110000": "北京市", "120000": "天津市"}, result.RegionNames)
}

func TestClient_FetchSeries_MissingDatanodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"returndata":{"wdnodes":[]}}`))
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	_, err := c.FetchSeries(context.Background(), "fsnd", "A0101", "E0102")
	assert.ErrorIs(t, err, domain.ErrIncomplete)
}

func TestClient_FetchTree_ShapeErrorKeepsPreview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"returncode":501,"msg":"db offline"}`))
	}))
	defer srv.Close()

	c := testClient(clockwork.NewRealClock(), srv.URL)
	_, err := c.FetchTree(context.Background(), "fsnd", "zb", "E0102")

	require.ErrorIs(t, err, domain.ErrBadShape)
	assert.Contains(t, err.Error(), "db offline")
}

func TestClient_EndpointFallbackOn404(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(treeBody))
	}))
	defer live.Close()

	c := testClient(clockwork.NewRealClock(), dead.URL, live.URL)
	nodes, err := c.FetchTree(context.Background(), "fsnd", "zb", "E0102")

	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestClient_AllEndpointsExhausted(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	c := testClient(clockwork.NewRealClock(), notFound.URL, broken.URL)
	_, err := c.FetchTree(context.Background(), "fsnd", "zb", "E0102")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted")
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "502")
}
