package httpapi

import (
	"net/http"
	"testing"

	"github.com/volantix/siteapi/internal/store"
)

func TestPublicCatalogReads(t *testing.T) {
	e := newEnv(t)

	if err := e.store.CreateProduct(&store.Product{ID: 1, Name: "Surveyor X4", Category: "mapping"}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := e.store.CreateBlog(&store.Blog{ID: 3, Title: "Field notes"}); err != nil {
		t.Fatalf("seed blog: %v", err)
	}

	rec := e.do(t, http.MethodGet, "/api/products", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var products []store.Product
	decodeResponse(t, rec, &products)
	if len(products) != 1 || products[0].Name != "Surveyor X4" {
		t.Fatalf("unexpected products: %+v", products)
	}

	rec = e.do(t, http.MethodGet, "/api/blogs/3", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/blogs/99", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	// Reads are public: no cookie, no capability.
	rec = e.do(t, http.MethodGet, "/api/services", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestContactQueryIntake(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/queries", map[string]string{
		"name":    "Visitor",
		"email":   "visitor@example.com",
		"phone":   "555-0100",
		"message": "Do you ship to Norway?",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	queries, err := e.store.ListQueries()
	if err != nil || len(queries) != 1 {
		t.Fatalf("query not stored: %v %+v", err, queries)
	}
	if queries[0].Message != "Do you ship to Norway?" {
		t.Fatalf("unexpected query: %+v", queries[0])
	}

	// The site inbox is notified.
	if e.mail.notifyTo != "inbox@example.com" {
		t.Fatalf("expected inbox notification, got %q", e.mail.notifyTo)
	}

	rec = e.do(t, http.MethodPost, "/api/queries", map[string]string{"name": "NoEmail"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
}
