package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchURLTool_Name(t *testing.T) {
	ft := NewFetchURLTool()
	if ft.Name() != "fetch_url" {
		t.Fatalf("got %q, want %q", ft.Name(), "fetch_url")
	}
}

func TestFetchURLTool_Execute_InvalidJSON(t *testing.T) {
	ft := NewFetchURLTool()
	if _, err := ft.Execute(context.Background(), "not json"); err == nil {
		t.Fatal("expected invalid JSON arguments to error")
	}
}

func TestFetchURLTool_Execute_MissingURL(t *testing.T) {
	ft := NewFetchURLTool()
	if _, err := ft.Execute(context.Background(), `{}`); err == nil {
		t.Fatal("expected a missing url to error")
	}
}

func TestFetchURLTool_Execute_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ft := &FetchURLTool{client: srv.Client()}
	_, err := ft.Execute(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err == nil {
		t.Fatal("expected a 404 response to error")
	}
}

func TestFetchURLTool_Execute_ConvertsHTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>Hello</h1><p>World</p></body></html>"))
	}))
	defer srv.Close()

	ft := &FetchURLTool{client: srv.Client()}
	out, err := ft.Execute(context.Background(), `{"url":"`+srv.URL+`"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "World") {
		t.Fatalf("got %q, want it to contain the page's text", out)
	}
}
