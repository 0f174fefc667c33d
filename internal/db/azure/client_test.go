package azure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/batch"
	"github.com/kailas-cloud/vecbot/internal/domain/record"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
	"github.com/kailas-cloud/vecbot/internal/domain/search/filter"
)

const testKey = "test-admin-key"

func gatesSchema() *schema.Index {
	return schema.NewIndex("gates").
		Key("GateName").
		FilterableText("Terminal").
		Text("Airline").
		Text("CommentsNotes").
		Field(schema.Field{Name: "GateCapacity", Type: schema.Int32, Filterable: true, Sortable: true}).
		Field(schema.Field{Name: "GateResources", Type: schema.StringCollection, Filterable: true}).
		Field(schema.Field{Name: "AircraftStandby", Type: schema.Boolean, Filterable: true}).
		Vector("GateNameVector", 3, "my-vector-config").
		Vector("TerminalVector", 3, "my-vector-config").
		HNSW("my-vector-config", 4, 400, 500, schema.Cosine).
		Semantic("my-semantic-config", "GateName", []string{"CommentsNotes"}, []string{"Terminal"}).
		MustBuild()
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL, AdminKey: testKey, UploadBatchSize: 2, UploadConcurrency: 2})
	require.NoError(t, err)
	return c
}

func requireAuth(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, testKey, r.Header.Get("api-key"))
	assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{AdminKey: "k"})
	require.Error(t, err)
	_, err = New(Config{Endpoint: "https://svc.search.windows.net"})
	require.Error(t, err)
	_, err = New(Config{Endpoint: "not a url", AdminKey: "k"})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, "/servicestats", r.URL.Path)
		_, _ = io.WriteString(w, `{"counters":{}}`)
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestPing_Forbidden(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":"Forbidden","message":"Invalid api-key"}}`)
	})
	err := c.Ping(context.Background())
	require.Error(t, err)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpStats, dbErr.Op)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "Invalid api-key", apiErr.Message)
}

func TestCreateOrUpdateIndex_WireFormat(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/indexes/gates", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.CreateOrUpdateIndex(context.Background(), gatesSchema()))

	fields := got["fields"].([]any)
	require.Len(t, fields, 9)
	key := fields[0].(map[string]any)
	assert.Equal(t, "GateName", key["name"])
	assert.Equal(t, true, key["key"])
	vec := fields[7].(map[string]any)
	assert.Equal(t, "Collection(Edm.Single)", vec["type"])
	assert.InDelta(t, 3, vec["dimensions"], 0)
	assert.Equal(t, "my-vector-config", vec["vectorSearchConfiguration"])

	algo := got["vectorSearch"].(map[string]any)["algorithmConfigurations"].([]any)[0].(map[string]any)
	assert.Equal(t, "hnsw", algo["kind"])
	params := algo["hnswParameters"].(map[string]any)
	assert.InDelta(t, 4, params["m"], 0)
	assert.InDelta(t, 400, params["efConstruction"], 0)
	assert.InDelta(t, 500, params["efSearch"], 0)
	assert.Equal(t, "cosine", params["metric"])

	sem := got["semantic"].(map[string]any)["configurations"].([]any)[0].(map[string]any)
	assert.Equal(t, "my-semantic-config", sem["name"])
	pf := sem["prioritizedFields"].(map[string]any)
	assert.Equal(t, "GateName", pf["titleField"].(map[string]any)["fieldName"])
}

func TestGetIndex_RoundTrip(t *testing.T) {
	var stored []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			stored, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			_, _ = w.Write(stored)
		}
	})

	want := gatesSchema()
	require.NoError(t, c.CreateOrUpdateIndex(context.Background(), want))
	got, err := c.GetIndex(context.Background(), "gates")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetIndex_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":"","message":"No index with the name 'gates' was found"}}`)
	})
	_, err := c.GetIndex(context.Background(), "gates")
	assert.ErrorIs(t, err, db.ErrIndexNotFound)
}

func TestUploadDocuments_Chunked(t *testing.T) {
	var mu sync.Mutex
	var chunkSizes []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, "/indexes/docs/docs/index", r.URL.Path)
		var body struct {
			Value []map[string]any `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		mu.Lock()
		chunkSizes = append(chunkSizes, len(body.Value))
		mu.Unlock()

		out := indexResultDTO{}
		failed := false
		for _, doc := range body.Value {
			assert.Equal(t, "upload", doc["@search.action"])
			id := doc["id"].(string)
			item := indexItemDTO{Key: id, Status: true, StatusCode: 201}
			if id == "3" {
				item = indexItemDTO{Key: id, Status: false, StatusCode: 400, ErrorMessage: "field 'titleVector' has wrong dimensions"}
				failed = true
			}
			out.Value = append(out.Value, item)
		}
		if failed {
			w.WriteHeader(http.StatusMultiStatus)
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	docs := []record.Record{{"id": "1"}, {"id": "2"}, {"id": "3"}, {"id": "4"}, {"id": "5"}}
	results, err := c.UploadDocuments(context.Background(), "docs", docs)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.ElementsMatch(t, []int{2, 2, 1}, chunkSizes)

	for i, r := range results {
		assert.Equal(t, docs[i]["id"], r.Key())
	}
	keys, msgs := batch.Failed(results)
	assert.Equal(t, []string{"3"}, keys)
	assert.Contains(t, msgs[0], "wrong dimensions")
}

func TestUploadDocuments_RequestFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.UploadDocuments(context.Background(), "docs", []record.Record{{"id": "1"}})
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpIndexDocs, dbErr.Op)
}

func TestSearch_PureVectorRequest(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requireAuth(t, r)
		assert.Equal(t, "/indexes/gates/docs/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"value":[
			{"@search.score":0.5,"GateName":"B2","Terminal":"Terminal B"},
			{"@search.score":0.9,"GateName":"A1","Terminal":"Terminal A"}
		]}`)
	})

	set, err := c.Search(context.Background(), &db.Query{
		Index:  "gates",
		Vector: &db.VectorQuery{Vector: []float32{1, 2, 3}, Fields: []string{"GateNameVector"}, K: 3},
		Select: []string{"GateName", "Terminal"},
		Top:    3,
	})
	require.NoError(t, err)

	_, hasSearch := body["search"]
	assert.False(t, hasSearch, "pure vector queries send no search text")
	assert.Equal(t, "GateName,Terminal", body["select"])
	vectors := body["vectors"].([]any)
	require.Len(t, vectors, 1)
	v := vectors[0].(map[string]any)
	assert.Equal(t, "GateNameVector", v["fields"])
	assert.InDelta(t, 3, v["k"], 0)

	require.Len(t, set.Results, 2)
	assert.Equal(t, "A1", set.Results[0].Text("GateName"))
	assert.InDelta(t, 0.9, set.Results[0].Score, 1e-9)
}

func TestSearch_FilteredRendersOData(t *testing.T) {
	var searchBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(toDTO(gatesSchema()))
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&searchBody))
		_, _ = io.WriteString(w, `{"value":[]}`)
	})

	expr, err := filter.Parse([]string{"Terminal=Terminal B"})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), &db.Query{
		Index:  "gates",
		Vector: &db.VectorQuery{Vector: []float32{1}, Fields: []string{"GateNameVector"}, K: 3},
		Filter: expr,
		Top:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Terminal eq 'Terminal B'", searchBody["filter"])
}

func TestSearch_SemanticHybrid(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{
			"@search.answers":[
				{"key":"A1","text":"Gate A1 is closest.","highlights":"<em>Gate A1</em>","score":0.93},
				{"key":"B2","text":"Gate B2 has standby.","score":0.81}
			],
			"value":[
				{"@search.score":0.03,"@search.rerankerScore":1.2,"GateName":"B2","GateCapacity":150,
				 "@search.captions":[{"text":"standby aircraft","highlights":"<em>standby</em>"}]},
				{"@search.score":0.02,"@search.rerankerScore":2.7,"GateName":"A1","GateCapacity":90}
			]}`)
	})

	set, err := c.Search(context.Background(), &db.Query{
		Index:     "gates",
		Text:      "gate with standby aircraft",
		Vector:    &db.VectorQuery{Vector: []float32{1}, Fields: []string{"GateNameVector", "TerminalVector"}, K: 3},
		RawFilter: "AircraftStandby eq true",
		Top:       3,
		Semantic:  &db.SemanticOptions{Configuration: "my-semantic-config", Language: "en-us"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gate with standby aircraft", body["search"])
	assert.Equal(t, "semantic", body["queryType"])
	assert.Equal(t, "en-us", body["queryLanguage"])
	assert.Equal(t, "my-semantic-config", body["semanticConfiguration"])
	assert.Equal(t, "extractive", body["captions"])
	assert.Equal(t, "extractive", body["answers"])
	assert.Equal(t, "AircraftStandby eq true", body["filter"])
	assert.Equal(t, "GateNameVector,TerminalVector", body["vectors"].([]any)[0].(map[string]any)["fields"])

	require.Len(t, set.Results, 2)
	assert.Equal(t, "A1", set.Results[0].Text("GateName"), "reranker score orders results")
	require.Len(t, set.Results[1].Captions, 1)
	assert.Equal(t, "standby aircraft", set.Results[1].Captions[0].Text)
	assert.Equal(t, json.Number("150"), set.Results[1].Document["GateCapacity"])
	require.Len(t, set.Answers, 2)
	assert.Equal(t, "A1", set.Answers[0].Key)
}

func TestSearch_IndexNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.Search(context.Background(), &db.Query{Index: "missing", Text: "q", Top: 3})
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))
}

func TestRenderFilter(t *testing.T) {
	idx := gatesSchema()
	tests := []struct {
		name    string
		clauses []string
		want    string
	}{
		{"string", []string{"Terminal=Terminal B"}, "Terminal eq 'Terminal B'"},
		{"quote escaping", []string{"GateName=O'Hare"}, "GateName eq 'O''Hare'"},
		{"collection", []string{"GateResources=Jet Bridge"}, "GateResources/any(t: t eq 'Jet Bridge')"},
		{"boolean", []string{"AircraftStandby=true"}, "AircraftStandby eq true"},
		{"range", []string{"GateCapacity>=100", "GateCapacity<200"}, "GateCapacity ge 100 and GateCapacity lt 200"},
		{"numeric eq", []string{"GateCapacity=150"}, "GateCapacity eq 150"},
		{"not", []string{"Terminal!=Terminal A"}, "not (Terminal eq 'Terminal A')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := filter.Parse(tt.clauses)
			require.NoError(t, err)
			got, err := renderFilter(expr, idx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderFilter_Should(t *testing.T) {
	a, _ := filter.NewMatch("Terminal", "Terminal A")
	b, _ := filter.NewMatch("Terminal", "Terminal B")
	expr, err := filter.NewExpression(nil, []filter.Condition{a, b}, nil)
	require.NoError(t, err)
	got, err := renderFilter(expr, gatesSchema())
	require.NoError(t, err)
	assert.Equal(t, "(Terminal eq 'Terminal A' or Terminal eq 'Terminal B')", got)
}

func TestRenderFilter_Errors(t *testing.T) {
	idx := gatesSchema()
	for _, clause := range []string{"Unknown=x", "Airline=Contoso", "Terminal>3", "AircraftStandby=maybe", "GateCapacity=lots"} {
		t.Run(clause, func(t *testing.T) {
			expr, err := filter.Parse([]string{clause})
			require.NoError(t, err)
			_, err = renderFilter(expr, idx)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestParseAPIError_PlainBody(t *testing.T) {
	err := parseAPIError(http.StatusBadGateway, []byte("upstream down\n"))
	assert.True(t, strings.HasSuffix(err.Error(), "upstream down"))
	err = parseAPIError(http.StatusBadGateway, nil)
	assert.Contains(t, err.Error(), http.StatusText(http.StatusBadGateway))
}
