package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hazyhaar/docudata/pkg/kit"
	"github.com/hazyhaar/docudata/pkg/library"
	"github.com/hazyhaar/docudata/pkg/session"
)

const tower = `{
  "walls": [
    {"id": "W1", "type": "structural", "height": "2.5 m", "thickness": "200mm"},
    {"id": "W2", "type": "partition", "height": "3 m", "thickness": "100mm", "jurisdiction": "CA"},
    {"id": "W3", "type": "structural", "height": "3.5m", "thickness": "8 in", "jurisdiction": "NY"}
  ],
  "doors": [
    {"id": "D1", "type": "exterior", "width": "30 in", "height": "80 in"}
  ]
}`

func newServices(t *testing.T) Services {
	t.Helper()
	lib := library.NewRegistry("", nil)
	if err := lib.Load(); err != nil {
		t.Fatalf("library: %v", err)
	}
	return Services{Sessions: session.NewStore(session.Config{Library: lib}), Library: lib}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// newLoadedSession creates a session over HTTP and loads the tower fixture.
func newLoadedSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, "POST", "/v1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var sess session.Session
	decode(t, rec, &sess)

	rec = do(t, h, "PUT", "/v1/sessions/"+sess.ID+"/dataset?name=tower.json", tower)
	if rec.Code != http.StatusOK {
		t.Fatalf("load = %d %s", rec.Code, rec.Body)
	}
	return sess.ID
}

func TestSearch(t *testing.T) {
	h := NewRouter(newServices(t))
	id := newLoadedSession(t, h)

	rec := do(t, h, "GET", "/v1/sessions/"+id+"/search?q=walls+greater+than+3m+height", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	var resp session.Response
	decode(t, rec, &resp)
	if resp.Total != 3 || resp.Results[0].ID != "W2" {
		t.Errorf("results = %+v", resp.Results)
	}
	if len(resp.Interpretation.Clauses) != 1 {
		t.Errorf("interpretation = %+v", resp.Interpretation)
	}

	rec = do(t, h, "GET", "/v1/sessions/"+id+"/search?q=walls&jurisdiction=ny&limit=1", "")
	decode(t, rec, &resp)
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Errorf("ny walls = %+v", resp)
	}
}

func TestSearch_CSV(t *testing.T) {
	h := NewRouter(newServices(t))
	id := newLoadedSession(t, h)

	rec := do(t, h, "GET", "/v1/sessions/"+id+"/search?q=doors&format=csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv = %d %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][3] != "D1" {
		t.Errorf("rows = %q", rows)
	}
}

func TestSearch_BadParams(t *testing.T) {
	h := NewRouter(newServices(t))
	id := newLoadedSession(t, h)
	for _, q := range []string{"format=pdf", "limit=-1", "limit=x"} {
		if rec := do(t, h, "GET", "/v1/sessions/"+id+"/search?q=walls&"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestCompliance(t *testing.T) {
	h := NewRouter(newServices(t))
	id := newLoadedSession(t, h)

	rec := do(t, h, "POST", "/v1/sessions/"+id+"/compliance?system=imperial", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("compliance = %d %s", rec.Code, rec.Body)
	}
	var report struct {
		NonCompliant []struct {
			ID string `json:"id"`
		} `json:"non_compliant"`
	}
	decode(t, rec, &report)
	found := false
	for _, f := range report.NonCompliant {
		found = found || f.ID == "D1"
	}
	if !found {
		t.Errorf("D1 should be non-compliant: %+v", report)
	}

	if rec := do(t, h, "POST", "/v1/sessions/"+id+"/compliance?against=nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown dataset status = %d", rec.Code)
	}
}

func TestLoad(t *testing.T) {
	h := NewRouter(newServices(t))
	rec := do(t, h, "POST", "/v1/sessions", "")
	var sess session.Session
	decode(t, rec, &sess)

	rec = do(t, h, "PUT", "/v1/sessions/"+sess.ID+"/dataset?dataset="+library.BuiltinID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load builtin = %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		Session session.Session `json:"session"`
		Stats   struct {
			Requirements int `json:"requirements"`
		} `json:"stats"`
	}
	decode(t, rec, &resp)
	if resp.Session.Dataset != library.BuiltinID || resp.Stats.Requirements == 0 {
		t.Errorf("resp = %+v", resp)
	}

	cases := []struct {
		target, body string
		want         int
	}{
		{"/v1/sessions/" + sess.ID + "/dataset", "", http.StatusBadRequest},
		{"/v1/sessions/" + sess.ID + "/dataset?name=x.json", `{"notes": 1}`, http.StatusBadRequest},
		{"/v1/sessions/" + sess.ID + "/dataset?name=x.json", `{not json`, http.StatusBadRequest},
		{"/v1/sessions/" + sess.ID + "/dataset?dataset=nope", "", http.StatusNotFound},
		{"/v1/sessions/missing/dataset?name=x.json", tower, http.StatusNotFound},
	}
	for _, c := range cases {
		if rec := do(t, h, "PUT", c.target, c.body); rec.Code != c.want {
			t.Errorf("PUT %s = %d, want %d (%s)", c.target, rec.Code, c.want, rec.Body)
		}
	}
}

func TestSessionNotFound(t *testing.T) {
	h := NewRouter(newServices(t))
	for _, r := range []struct{ method, target string }{
		{"GET", "/v1/sessions/missing/search?q=walls"},
		{"GET", "/v1/sessions/missing/stats"},
		{"POST", "/v1/sessions/missing/compliance"},
		{"DELETE", "/v1/sessions/missing"},
	} {
		if rec := do(t, h, r.method, r.target, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d", r.method, r.target, rec.Code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	svc := newServices(t)
	h := NewRouter(svc)
	id := newLoadedSession(t, h)

	if rec := do(t, h, "DELETE", "/v1/sessions/"+id, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if svc.Sessions.Len() != 0 {
		t.Errorf("Len = %d after delete", svc.Sessions.Len())
	}
}

func TestStats(t *testing.T) {
	h := NewRouter(newServices(t))
	id := newLoadedSession(t, h)
	rec := do(t, h, "GET", "/v1/sessions/"+id+"/stats", "")
	var stats struct {
		Components int            `json:"components"`
		ByType     map[string]int `json:"by_type"`
	}
	decode(t, rec, &stats)
	if stats.Components != 4 || stats.ByType["Wall"] != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReferenceRoutes(t *testing.T) {
	h := NewRouter(newServices(t))

	var health healthResponse
	decode(t, do(t, h, "GET", "/v1/health", ""), &health)
	if health.Status != "ok" || health.Datasets != 1 {
		t.Errorf("health = %+v", health)
	}

	var datasets datasetsResponse
	decode(t, do(t, h, "GET", "/v1/datasets", ""), &datasets)
	if len(datasets.Datasets) != 1 || datasets.Datasets[0].ID != library.BuiltinID {
		t.Errorf("datasets = %+v", datasets)
	}

	var jur jurisdictionsResponse
	decode(t, do(t, h, "GET", "/v1/jurisdictions", ""), &jur)
	if len(jur.Jurisdictions) == 0 {
		t.Error("no jurisdictions")
	}

	rec := do(t, h, "GET", "/v1/templates/IfcWall", "")
	var tpl struct {
		Entity string            `json:"entity"`
		Units  map[string]string `json:"units"`
	}
	decode(t, rec, &tpl)
	if tpl.Entity != "IfcWall" || len(tpl.Units) == 0 {
		t.Errorf("template = %+v", tpl)
	}
	if rec := do(t, h, "GET", "/v1/templates/IfcRoof", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown template = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(newServices(t))
	rec := do(t, h, "OPTIONS", "/v1/sessions", "")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func callTool(t *testing.T, tools []mcpTool, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, tool := range tools {
		if tool.tool.Name != name {
			continue
		}
		call := mcp.CallToolRequest{}
		call.Params.Name = name
		call.Params.Arguments = args
		res, err := kit.MCPHandler(tool.endpoint, tool.decode)(context.Background(), call)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return res
	}
	t.Fatalf("no tool %q", name)
	return nil
}

func resultText(res *mcp.CallToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	tc, _ := res.Content[0].(mcp.TextContent)
	return tc.Text
}

func TestMCPTools(t *testing.T) {
	svc := newServices(t)
	tools, def := mcpTools(svc)
	if def == "" || svc.Sessions.Len() != 1 {
		t.Fatalf("default session %q, Len = %d", def, svc.Sessions.Len())
	}

	res := callTool(t, tools, "load_dataset", map[string]any{"content": tower, "name": "tower.json"})
	if res.IsError {
		t.Fatalf("load_dataset: %s", resultText(res))
	}

	res = callTool(t, tools, "search_components", map[string]any{"query": "walls greater than 3m height", "limit": float64(1)})
	var resp session.Response
	if err := json.Unmarshal([]byte(resultText(res)), &resp); err != nil {
		t.Fatalf("search result %q: %v", resultText(res), err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "W2" {
		t.Errorf("search = %+v", resp)
	}

	res = callTool(t, tools, "search_components", map[string]any{"query": "walls", "session_id": "missing"})
	if !res.IsError {
		t.Error("unknown session should be a tool error")
	}
	res = callTool(t, tools, "search_components", map[string]any{"query": "walls", "limit": float64(-2)})
	if !res.IsError {
		t.Error("negative limit should be a tool error")
	}

	res = callTool(t, tools, "check_compliance", map[string]any{"system": "imperial"})
	if res.IsError || !strings.Contains(resultText(res), "D1") {
		t.Errorf("check_compliance = %s", resultText(res))
	}

	res = callTool(t, tools, "component_template", map[string]any{"type": "wall"})
	if res.IsError || !strings.Contains(resultText(res), "IfcWall") {
		t.Errorf("component_template = %s", resultText(res))
	}

	res = callTool(t, tools, "list_datasets", nil)
	if !strings.Contains(resultText(res), library.BuiltinID) {
		t.Errorf("list_datasets = %s", resultText(res))
	}
}
