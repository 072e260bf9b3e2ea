package store

import (
	"errors"
	"testing"
	"time"

	"github.com/volantix/siteapi/internal/permission"
)

func TestCreateUserAssignsIDs(t *testing.T) {
	s := NewMemoryStore()

	first, err := s.CreateUser(&User{Username: "admin", Email: "admin@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected first user to get id 1, got %d", first.ID)
	}

	second, err := s.CreateUser(&User{Username: "editor", Email: "editor@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("expected id 2, got %d", second.ID)
	}
}

func TestCreateUserAfterExplicitIDSeed(t *testing.T) {
	s := NewMemoryStore()

	// Startup seeds the administrator at a fixed id before any auto-assigned
	// create happens; the next create must skip past it.
	seeded, err := s.CreateUser(&User{ID: AdminUserID, Username: "admin", Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	created, err := s.CreateUser(&User{Username: "editor", Email: "editor@example.com"})
	if err != nil {
		t.Fatalf("create after seed failed: %v", err)
	}
	if created.ID <= seeded.ID {
		t.Fatalf("auto-assigned id %d does not follow seeded id %d", created.ID, seeded.ID)
	}
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.CreateUser(&User{Username: "admin", Email: "admin@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cases := map[string]*User{
		"same username":      {Username: "admin", Email: "other@example.com"},
		"username case-fold": {Username: "ADMIN", Email: "other@example.com"},
		"same email":         {Username: "other", Email: "admin@example.com"},
		"email case-fold":    {Username: "other", Email: "Admin@Example.com"},
	}
	for name, u := range cases {
		if _, err := s.CreateUser(u); !errors.Is(err, ErrConflict) {
			t.Errorf("%s: expected ErrConflict, got %v", name, err)
		}
	}
}

func TestGetUserByIdentifier(t *testing.T) {
	s := NewMemoryStore()

	created, err := s.CreateUser(&User{Username: "alice", Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for _, identifier := range []string{"alice", "ALICE", "alice@example.com", "Alice@Example.com"} {
		u, err := s.GetUserByIdentifier(identifier)
		if err != nil {
			t.Fatalf("lookup %q failed: %v", identifier, err)
		}
		if u.ID != created.ID {
			t.Fatalf("lookup %q returned wrong user %d", identifier, u.ID)
		}
	}

	if _, err := s.GetUserByIdentifier("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserPermissions(t *testing.T) {
	s := NewMemoryStore()

	created, _ := s.CreateUser(&User{Username: "alice", Email: "alice@example.com"})

	perms := permission.Matrix{}
	perms.Blog.AddBlogs = true
	if err := s.UpdateUserPermissions(created.ID, perms); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	u, _ := s.GetUserByID(created.ID)
	if !u.Permissions.Blog.AddBlogs {
		t.Fatal("permission update not persisted")
	}

	if err := s.UpdateUserPermissions(999, perms); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewMemoryStore()

	created, _ := s.CreateUser(&User{Username: "alice", Email: "alice@example.com", Password: "pw"})

	u, _ := s.GetUserByID(created.ID)
	u.Password = "mutated"

	again, _ := s.GetUserByID(created.ID)
	if again.Password != "pw" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestProductLifecycle(t *testing.T) {
	s := NewMemoryStore()

	p := &Product{ID: 42, Name: "Surveyor X4", Category: "mapping"}
	if err := s.CreateProduct(p); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := s.CreateProduct(&Product{ID: 42, Name: "dup"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}

	if err := s.UpdateProduct(&Product{ID: 42, Name: "Surveyor X5", Category: "mapping"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, err := s.GetProduct(42)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Surveyor X5" {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("update lost the creation timestamp")
	}

	if err := s.DeleteProduct(42); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetProduct(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteProduct(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestListProductsSortedByID(t *testing.T) {
	s := NewMemoryStore()

	for _, id := range []int{30, 10, 20} {
		if err := s.CreateProduct(&Product{ID: id, Name: "p"}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	products, err := s.ListProducts()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(products) != 3 || products[0].ID != 10 || products[2].ID != 30 {
		t.Fatalf("unexpected order: %+v", products)
	}
}

func TestQueriesOrderedByArrival(t *testing.T) {
	s := NewMemoryStore()

	base := time.Now()
	for i, id := range []string{"q-c", "q-a", "q-b"} {
		q := &Query{ID: id, Email: "x@example.com", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.CreateQuery(q); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	queries, err := s.ListQueries()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(queries) != 3 || queries[0].ID != "q-c" || queries[2].ID != "q-b" {
		t.Fatalf("unexpected order: %+v", queries)
	}

	if err := s.DeleteQuery("q-a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.DeleteQuery("q-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditAppendAndClear(t *testing.T) {
	s := NewMemoryStore()

	if err := s.AppendAudit(&AuditEntry{ID: "a1", Username: "admin", Change: "Added product Surveyor X4"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.AppendAudit(&AuditEntry{ID: "a2", Username: "admin", Change: "Deleted blog 3"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	entries, err := s.ListAudit()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Change != "Added product Surveyor X4" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := s.ClearAudit(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	entries, _ = s.ListAudit()
	if len(entries) != 0 {
		t.Fatalf("audit trail not cleared: %+v", entries)
	}
}
