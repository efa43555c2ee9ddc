package http_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/kvorm/adapters/clock"
	apihttp "github.com/artpar/kvorm/adapters/http"
	"github.com/artpar/kvorm/adapters/idgen"
	"github.com/artpar/kvorm/adapters/memory"
	"github.com/artpar/kvorm/adapters/metrics"
	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/schema"
	"github.com/artpar/kvorm/model"
	"github.com/artpar/kvorm/ports"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCreate_Success(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/users", `{"data":{"name":"alice","age":30}}`)
	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	body := decodeMap(t, rec)
	if body["success"] != true {
		t.Error("expected success = true")
	}
	if body["id"] != "d1" {
		t.Errorf("id = %v, want d1", body["id"])
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %v", body["data"])
	}
	if data["name"] != "alice" {
		t.Errorf("name = %v, want alice", data["name"])
	}
	if data["created_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %v, want 2025-06-01T12:00:00Z", data["created_at"])
	}
}

func TestCreate_UnknownCollection(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/ghosts", `{"data":{"x":1}}`)
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	body := decodeMap(t, rec)
	if body["success"] != false {
		t.Error("expected success = false")
	}
	if body["code"] != "collection_not_found" {
		t.Errorf("code = %v, want collection_not_found", body["code"])
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "ghosts") {
		t.Errorf("error %q does not name the collection", msg)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/users", `{"data":{"age":30}}`)
	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422, body: %s", rec.Code, rec.Body.String())
	}

	body := decodeMap(t, rec)
	if body["field"] != "name" {
		t.Errorf("field = %v, want name", body["field"])
	}
	if body["success"] != false {
		t.Error("expected success = false")
	}

	// A rejected document must not reach the store.
	count := doJSON(t, h, "GET", "/api/users/count", "")
	if got := decodeMap(t, count)["count"]; got != float64(0) {
		t.Errorf("count after failed create = %v, want 0", got)
	}
}

func TestCreate_MissingDataField(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/users", `{"name":"alice"}`)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreate_MalformedJSON(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/users", `{"data":`)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGet_ReturnsRawDocument(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	id := seedUser(t, h, "alice", 30)

	rec := doJSON(t, h, "GET", "/api/users/"+id, "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeMap(t, rec)
	if body["name"] != "alice" {
		t.Errorf("name = %v, want alice", body["name"])
	}
	// The document itself is the body, not an envelope around it.
	if _, ok := body["success"]; ok {
		t.Error("document response should not carry a success flag")
	}
}

func TestGet_Missing(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "GET", "/api/users/ghost", "")
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeMap(t, rec)["error"]; got != "Document not found" {
		t.Errorf("error = %v, want Document not found", got)
	}
}

func TestUpdate_MergesPatch(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	id := seedUser(t, h, "alice", 30)

	rec := doJSON(t, h, "PUT", "/api/users/"+id, `{"data":{"age":31}}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	body := decodeMap(t, rec)
	if body["success"] != true {
		t.Error("expected success = true")
	}
	data := body["data"].(map[string]any)
	if data["age"] != float64(31) {
		t.Errorf("age = %v, want 31", data["age"])
	}
	if data["name"] != "alice" {
		t.Errorf("name = %v, want alice (patch must not drop fields)", data["name"])
	}
}

func TestUpdate_Missing(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "PUT", "/api/users/ghost", `{"data":{"age":31}}`)
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdate_ValidationFailure(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	id := seedUser(t, h, "alice", 30)

	rec := doJSON(t, h, "PUT", "/api/users/"+id, `{"data":{"age":-5}}`)
	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422, body: %s", rec.Code, rec.Body.String())
	}
	if got := decodeMap(t, rec)["field"]; got != "age" {
		t.Errorf("field = %v, want age", got)
	}
}

func TestDelete_ThenMissing(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	id := seedUser(t, h, "alice", 30)

	rec := doJSON(t, h, "DELETE", "/api/users/"+id, "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["success"] != true || body["deleted"] != true {
		t.Errorf("body = %v, want success and deleted true", body)
	}

	rec = doJSON(t, h, "DELETE", "/api/users/"+id, "")
	if rec.Code != 404 {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestQuery_FilterSortPaginate(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	seedUser(t, h, "dave", 19)
	seedUser(t, h, "alice", 26)
	seedUser(t, h, "bob", 31)
	seedUser(t, h, "carol", 45)

	plan := `{
		"filters": [{"field": "age", "operator": "gte", "value": 26}],
		"sort": {"field": "age", "order": "asc"},
		"skip": 1,
		"limit": 2
	}`
	rec := doJSON(t, h, "POST", "/api/users/query", plan)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	body := decodeMap(t, rec)
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	docs := body["documents"].([]any)
	names := []string{
		docs[0].(map[string]any)["name"].(string),
		docs[1].(map[string]any)["name"].(string),
	}
	if names[0] != "bob" || names[1] != "carol" {
		t.Errorf("names = %v, want [bob carol]", names)
	}
}

func TestQuery_EmptyPlanReturnsAll(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	seedUser(t, h, "alice", 26)
	seedUser(t, h, "bob", 31)

	rec := doJSON(t, h, "POST", "/api/users/query", `{}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeMap(t, rec)["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
}

func TestList_Pagination(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	seedUser(t, h, "alice", 26)
	seedUser(t, h, "bob", 31)
	seedUser(t, h, "carol", 45)

	rec := doJSON(t, h, "GET", "/api/users?limit=2", "")
	if got := decodeMap(t, rec)["count"]; got != float64(2) {
		t.Errorf("count with limit=2 = %v, want 2", got)
	}

	rec = doJSON(t, h, "GET", "/api/users?skip=2", "")
	if got := decodeMap(t, rec)["count"]; got != float64(1) {
		t.Errorf("count with skip=2 = %v, want 1", got)
	}

	rec = doJSON(t, h, "GET", "/api/users", "")
	body := decodeMap(t, rec)
	if body["collection"] != "users" {
		t.Errorf("collection = %v, want users", body["collection"])
	}
	if body["count"] != float64(3) {
		t.Errorf("count = %v, want 3", body["count"])
	}
}

func TestCount(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})
	seedUser(t, h, "alice", 26)
	seedUser(t, h, "bob", 31)

	rec := doJSON(t, h, "GET", "/api/users/count", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["collection"] != "users" || body["count"] != float64(2) {
		t.Errorf("body = %v, want users count 2", body)
	}
}

func TestAuth_RequiresBearerToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := newTestAPI(t, apihttp.RouterConfig{
		AuthEnabled:   true,
		AuthTokenHash: string(hash),
	})

	rec := doJSON(t, h, "GET", "/api/users", "")
	if rec.Code != 401 {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}

	req := httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Errorf("status with bad token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/users", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Errorf("status with good token = %d, want 200", rec.Code)
	}

	// Health stays open so probes work without credentials.
	rec = doJSON(t, h, "GET", "/health", "")
	if rec.Code != 200 {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "GET", "/health", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "ok" || body["database"] != "connected" {
		t.Errorf("body = %v, want status ok database connected", body)
	}

	rec = doJSON(t, h, "GET", "/health/live", "")
	if rec.Code != 200 {
		t.Errorf("liveness status = %d, want 200", rec.Code)
	}
}

func TestHealth_StoreDown(t *testing.T) {
	h := buildAPI(t, downStore{}, apihttp.RouterConfig{})

	rec := doJSON(t, h, "GET", "/health", "")
	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "error" || body["database"] != "disconnected" {
		t.Errorf("body = %v, want status error database disconnected", body)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "store down") {
		t.Errorf("error = %q, want the ping failure", msg)
	}
}

func TestStoreError_MapsTo503(t *testing.T) {
	h := buildAPI(t, downStore{}, apihttp.RouterConfig{})

	rec := doJSON(t, h, "POST", "/api/users", `{"data":{"name":"alice"}}`)
	if rec.Code != 503 {
		t.Fatalf("status = %d, want 503, body: %s", rec.Code, rec.Body.String())
	}
	if got := decodeMap(t, rec)["code"]; got != "repository_unavailable" {
		t.Errorf("code = %v, want repository_unavailable", got)
	}
}

func TestVersion(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{
		Version: apihttp.VersionInfo{Version: "1.2.3", Commit: "abc1234"},
	})

	rec := doJSON(t, h, "GET", "/version", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["service"] != "kvorm" || body["version"] != "1.2.3" {
		t.Errorf("body = %v, want service kvorm version 1.2.3", body)
	}
}

func TestRoot_ListsEndpoints(t *testing.T) {
	h := newTestAPI(t, apihttp.RouterConfig{})

	rec := doJSON(t, h, "GET", "/", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["name"] != "kvorm" {
		t.Errorf("name = %v, want kvorm", body["name"])
	}
	endpoints, ok := body["endpoints"].(map[string]any)
	if !ok || endpoints["create"] == nil {
		t.Errorf("endpoints = %v, want a route index", body["endpoints"])
	}
}

func TestMetrics_Scrape(t *testing.T) {
	promReg := prometheus.NewRegistry()
	col := metrics.NewWithRegistry(promReg)

	store := memory.NewDocumentStore()
	reg, err := model.NewRegistry(model.RegistryConfig{
		Namespace:   "test",
		Store:       store,
		Clock:       clock.NewFake(testTime),
		IDGen:       idgen.NewSequential("d"),
		Observer:    col,
		Collections: map[string]schema.Schema{"users": usersSchema()},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	docs := apihttp.NewDocumentHandlerWithMetrics(reg, zerolog.Nop(), col, "memory")
	h := apihttp.NewRouterWithConfig(docs, apihttp.NewHealthHandler(store), zerolog.Nop(), apihttp.RouterConfig{
		Metrics:        col,
		MetricsHandler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		MetricsPath:    "/metrics",
	})

	if rec := doJSON(t, h, "POST", "/api/users", `{"data":{"name":"alice"}}`); rec.Code != 201 {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}

	rec := doJSON(t, h, "GET", "/metrics", "")
	if rec.Code != 200 {
		t.Fatalf("scrape status = %d, want 200", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "kvorm_requests_total") {
		t.Error("scrape missing kvorm_requests_total")
	}
	if !strings.Contains(page, "kvorm_ops_total") {
		t.Error("scrape missing kvorm_ops_total")
	}
}

func TestDynamicCollections(t *testing.T) {
	reg, err := model.NewRegistry(model.RegistryConfig{
		Namespace: "test",
		Store:     memory.NewDocumentStore(),
		Clock:     clock.NewFake(testTime),
		IDGen:     idgen.NewSequential("d"),
		Dynamic:   true,
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	docs := apihttp.NewDocumentHandler(reg, zerolog.Nop())
	h := apihttp.NewRouter(docs, apihttp.NewHealthHandler(nil), zerolog.Nop())

	rec := doJSON(t, h, "POST", "/api/anything", `{"data":{"whatever":true}}`)
	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "GET", "/api/anything/count", "")
	if got := decodeMap(t, rec)["count"]; got != float64(1) {
		t.Errorf("count = %v, want 1", got)
	}
}

// ----- helpers -----

func usersSchema() schema.Schema {
	return schema.Schema{
		"name":  {Type: document.KindString, Required: true, MinLength: schema.IntPtr(2)},
		"email": {Type: document.KindString, Email: true},
		"age":   {Type: document.KindNumber, Min: schema.Float64Ptr(0), Max: schema.Float64Ptr(150)},
	}
}

func buildAPI(t *testing.T, store ports.DocumentStore, cfg apihttp.RouterConfig) http.Handler {
	t.Helper()
	reg, err := model.NewRegistry(model.RegistryConfig{
		Namespace:   "test",
		Store:       store,
		Clock:       clock.NewFake(testTime),
		IDGen:       idgen.NewSequential("d"),
		Collections: map[string]schema.Schema{"users": usersSchema()},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	docs := apihttp.NewDocumentHandler(reg, zerolog.Nop())
	return apihttp.NewRouterWithConfig(docs, apihttp.NewHealthHandler(store), zerolog.Nop(), cfg)
}

func newTestAPI(t *testing.T, cfg apihttp.RouterConfig) http.Handler {
	t.Helper()
	return buildAPI(t, memory.NewDocumentStore(), cfg)
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return m
}

func seedUser(t *testing.T, h http.Handler, name string, age float64) string {
	t.Helper()
	body := fmt.Sprintf(`{"data":{"name":%q,"age":%v}}`, name, age)
	rec := doJSON(t, h, "POST", "/api/users", body)
	if rec.Code != 201 {
		t.Fatalf("seed %s: status = %d, body: %s", name, rec.Code, rec.Body.String())
	}
	id, _ := decodeMap(t, rec)["id"].(string)
	if id == "" {
		t.Fatalf("seed %s: response carries no id", name)
	}
	return id
}

var errStoreDown = errors.New("store down")

// downStore fails every operation, standing in for an unreachable backend.
type downStore struct{}

func (downStore) Set(context.Context, string, []byte) error      { return errStoreDown }
func (downStore) Get(context.Context, string) ([]byte, error)    { return nil, errStoreDown }
func (downStore) Delete(context.Context, string) (bool, error)   { return false, errStoreDown }
func (downStore) Keys(context.Context, string) ([]string, error) { return nil, errStoreDown }
func (downStore) Exists(context.Context, string) (bool, error)   { return false, errStoreDown }
func (downStore) Ping(context.Context) error                     { return errStoreDown }
func (downStore) Close() error                                   { return nil }

var _ ports.DocumentStore = downStore{}
