package webbundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>root</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "js"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "js", "hello.js"), []byte("console.log('hi')"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestExchangesFromDir(t *testing.T) {
	dir := writeTestTree(t)

	bndl, err := NewBuilder().
		Version(VersionB2).
		ExchangesFromDir(context.Background(), dir).
		Build()
	if err != nil {
		t.Fatalf("Build errored: %v", err)
	}

	if len(bndl.Exchanges()) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(bndl.Exchanges()))
	}

	root, found := findExchange(bndl, "")
	if !found {
		t.Fatal("missing exchange serving the root directory's index.html")
	}
	if root.Response.Status != 200 {
		t.Errorf("root: expected status 200, got %d", root.Response.Status)
	}
	if string(root.Response.Body) != "<html>root</html>" {
		t.Errorf("root: unexpected body %q", root.Response.Body)
	}

	indexHTML, found := findExchange(bndl, "index.html")
	if !found {
		t.Fatal("missing redirect exchange for index.html")
	}
	if indexHTML.Response.Status != 301 {
		t.Errorf("index.html: expected status 301, got %d", indexHTML.Response.Status)
	}
	if loc, ok := indexHTML.Response.Headers.Get("location"); !ok || string(loc) != "./" {
		t.Errorf("index.html: expected location ./, got %q (ok=%v)", loc, ok)
	}

	js, found := findExchange(bndl, "js/hello.js")
	if !found {
		t.Fatal("missing exchange for js/hello.js")
	}
	if string(js.Response.Body) != "console.log('hi')" {
		t.Errorf("js/hello.js: unexpected body %q", js.Response.Body)
	}

	data, err := bndl.Encode()
	if err != nil {
		t.Fatalf("Encode errored: %v", err)
	}
	if _, err := Parse(data); err != nil {
		t.Fatalf("Parse errored: %v", err)
	}
}
