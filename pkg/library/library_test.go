package library

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/docudata/pkg/catalog"
)

func init() {
	retryDelay = func(int) time.Duration { return time.Millisecond }
}

func writeDataset(t *testing.T, dir, name, manifest, data string) {
	t.Helper()
	d := filepath.Join(dir, name)
	if err := os.MkdirAll(d, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if data != "" {
		if err := os.WriteFile(filepath.Join(d, "data.json"), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuiltin(t *testing.T) {
	reg := NewRegistry("", nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("Count = %d, want 1", reg.Count())
	}
	d, err := reg.Get(BuiltinID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !d.Builtin || d.Catalog.Shape != catalog.ShapeTree {
		t.Errorf("builtin = %+v", d)
	}
	if got := len(d.Catalog.Requirements()); got != 8 {
		t.Errorf("requirements = %d, want 8 (warnings %v)", got, d.Catalog.Warnings)
	}

	stairs, ok := d.Catalog.Get("stairs.public")
	if !ok {
		t.Fatal("stairs.public missing")
	}
	if stairs.CodeReference != "CBC Section 1011" || stairs.Tag != "public" {
		t.Errorf("stairs.public = %+v", stairs)
	}
	var riserMax bool
	for _, c := range stairs.Constraints {
		if c.Attribute == "riser_height" && c.Comparator == catalog.AtMost {
			riserMax = true
		}
	}
	if !riserMax {
		t.Errorf("constraints = %v, want riser_height ≤ 7 in", stairs.Constraints)
	}
}

func TestRegistry_Directory(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "tower", `id: tower-a
version: "1"
kind: components
jurisdiction: CA
source: test
license: CC-BY-4.0
`, `{"walls": [{"id": "W1", "thickness": "200mm"}], "doors": [{"id": "D1"}]}`)
	writeDataset(t, dir, "override", `id: reference-codes
version: "local"
source: test
license: internal
`, `{"walls": {"external": {"description": "Local rule", "min_thickness": "300 mm"}}}`)
	// Folders without a manifest are ignored.
	os.MkdirAll(filepath.Join(dir, "scratch"), 0o755)

	reg := NewRegistry(dir, nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	infos := reg.List()
	if len(infos) != 2 || infos[0].ID != "reference-codes" || infos[1].ID != "tower-a" {
		t.Fatalf("List = %+v", infos)
	}
	if infos[0].Builtin || infos[0].Version != "local" || infos[0].Requirements != 1 {
		t.Errorf("override = %+v", infos[0])
	}
	if infos[1].Components != 2 || infos[1].Records != 2 {
		t.Errorf("tower = %+v", infos[1])
	}

	tower, _ := reg.Get("tower-a")
	w1, _ := tower.Catalog.Get("W1")
	if w1.Jurisdiction != "california" {
		t.Errorf("manifest jurisdiction not applied: %q", w1.Jurisdiction)
	}
	if tower.Catalog.Name != "tower-a" {
		t.Errorf("catalog name = %q", tower.Catalog.Name)
	}
}

func TestRegistry_MissingDir(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "absent"), nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d, want builtin only", reg.Count())
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nope) err = %v, want ErrNotFound", err)
	}
}

func TestRegistry_BadDataset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "bad", "id: bad\nsource: test\nlicense: x\n", `{"notes": "free text"}`)
	if err := NewRegistry(dir, nil).Load(); !errors.Is(err, catalog.ErrUnrecognizedShape) {
		t.Errorf("Load err = %v, want ErrUnrecognizedShape", err)
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ManifestFile)

	os.WriteFile(p, []byte("version: 1\n"), 0o644)
	if _, err := LoadManifest(p); err == nil {
		t.Error("missing id should fail")
	}
	os.WriteFile(p, []byte("id: x\nkind: furniture\n"), 0o644)
	if _, err := LoadManifest(p); err == nil {
		t.Error("unknown kind should fail")
	}
	os.WriteFile(p, []byte("id: x\n"), 0o644)
	m, err := LoadManifest(p)
	if err != nil || m.DataFile != "data.json" {
		t.Errorf("defaults = %+v, %v", m, err)
	}
}

func TestFetch(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("walls:\n  - id: W1\n    height: 3 m\n"))
	}))
	defer ts.Close()

	dir := t.TempDir()
	m, err := Fetch(context.Background(), dir, FetchRequest{ID: "site-b", URL: ts.URL + "/export/site.yaml", License: "test"}, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if m.DataFile != "data.yaml" || m.SourceURL == "" || m.Version == "" {
		t.Errorf("manifest = %+v", m)
	}
	if _, err := os.Stat(filepath.Join(dir, "site-b", "data.yaml.part")); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}

	reg := NewRegistry(dir, nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := reg.Get("site-b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Catalog.Len() != 1 {
		t.Errorf("records = %d, want 1", d.Catalog.Len())
	}
}

func TestFetch_Rejects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"notes": "not a dataset"}`))
	}))
	defer ts.Close()
	dir := t.TempDir()

	if _, err := Fetch(context.Background(), dir, FetchRequest{ID: "../escape", URL: ts.URL}, nil); !errors.Is(err, ErrInvalidID) {
		t.Errorf("bad id err = %v, want ErrInvalidID", err)
	}
	if _, err := Fetch(context.Background(), dir, FetchRequest{ID: "x", URL: "file:///etc/passwd"}, nil); err == nil {
		t.Error("file url should be rejected")
	}
	if _, err := Fetch(context.Background(), dir, FetchRequest{ID: "junk", URL: ts.URL}, nil); !errors.Is(err, catalog.ErrUnrecognizedShape) {
		t.Errorf("junk err = %v, want ErrUnrecognizedShape", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "junk", ManifestFile)); !os.IsNotExist(err) {
		t.Error("manifest written for a rejected dataset")
	}
}

func TestDownloadFile_AllFail(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := downloadFile(context.Background(), ts.URL, filepath.Join(t.TempDir(), "x"))
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != downloadAttempts {
		t.Errorf("attempts = %d, want %d", attempts, downloadAttempts)
	}
}
