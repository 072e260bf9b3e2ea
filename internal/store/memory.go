package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/volantix/siteapi/internal/permission"
)

// MemoryStore is the in-memory adapter used by tests and local development.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[int]*User
	products map[int]*Product
	services map[int]*Service
	blogs    map[int]*Blog
	queries  map[string]*Query
	audit    []*AuditEntry

	nextUserID int
}

// NewMemoryStore creates an empty memory adapter.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int]*User),
		products:   make(map[int]*Product),
		services:   make(map[int]*Service),
		blogs:      make(map[int]*Blog),
		queries:    make(map[string]*Query),
		nextUserID: 1,
	}
}

func (m *MemoryStore) Init() error  { return nil }
func (m *MemoryStore) Close() error { return nil }

func cloneUser(u *User) *User {
	c := *u
	return &c
}

func (m *MemoryStore) GetUserByID(id int) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetUserByIdentifier(identifier string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(identifier)
	for _, u := range m.users {
		if strings.ToLower(u.Username) == needle || strings.ToLower(u.Email) == needle {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListUsers() ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CreateUser(u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return nil, ErrConflict
		}
	}

	created := *u
	if created.ID == 0 {
		for {
			if _, taken := m.users[m.nextUserID]; !taken {
				break
			}
			m.nextUserID++
		}
		created.ID = m.nextUserID
		m.nextUserID++
	} else if _, taken := m.users[created.ID]; taken {
		return nil, ErrConflict
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}

	m.users[created.ID] = &created
	return cloneUser(&created), nil
}

func (m *MemoryStore) UpdateUserPermissions(id int, perms permission.Matrix) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Permissions = perms
	return nil
}

func (m *MemoryStore) UpdateUserPassword(id int, stored string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Password = stored
	return nil
}

func (m *MemoryStore) DeleteUser(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) ListProducts() ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Product, 0, len(m.products))
	for _, p := range m.products {
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetProduct(id int) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *MemoryStore) CreateProduct(p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.products[p.ID]; taken {
		return ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	c := *p
	m.products[p.ID] = &c
	return nil
}

func (m *MemoryStore) UpdateProduct(p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	c := *p
	c.CreatedAt = existing.CreatedAt
	m.products[p.ID] = &c
	return nil
}

func (m *MemoryStore) DeleteProduct(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) ListServices() ([]*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Service, 0, len(m.services))
	for _, s := range m.services {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetService(id int) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.services[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryStore) CreateService(s *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.services[s.ID]; taken {
		return ErrConflict
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	c := *s
	m.services[s.ID] = &c
	return nil
}

func (m *MemoryStore) UpdateService(s *Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.services[s.ID]
	if !ok {
		return ErrNotFound
	}
	c := *s
	c.CreatedAt = existing.CreatedAt
	m.services[s.ID] = &c
	return nil
}

func (m *MemoryStore) DeleteService(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[id]; !ok {
		return ErrNotFound
	}
	delete(m.services, id)
	return nil
}

func (m *MemoryStore) ListBlogs() ([]*Blog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Blog, 0, len(m.blogs))
	for _, b := range m.blogs {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetBlog(id int) (*Blog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *b
	return &c, nil
}

func (m *MemoryStore) CreateBlog(b *Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.blogs[b.ID]; taken {
		return ErrConflict
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	c := *b
	m.blogs[b.ID] = &c
	return nil
}

func (m *MemoryStore) UpdateBlog(b *Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.blogs[b.ID]
	if !ok {
		return ErrNotFound
	}
	c := *b
	c.CreatedAt = existing.CreatedAt
	m.blogs[b.ID] = &c
	return nil
}

func (m *MemoryStore) DeleteBlog(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blogs[id]; !ok {
		return ErrNotFound
	}
	delete(m.blogs, id)
	return nil
}

func (m *MemoryStore) ListQueries() ([]*Query, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Query, 0, len(m.queries))
	for _, q := range m.queries {
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateQuery(q *Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.queries[q.ID]; taken {
		return ErrConflict
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	c := *q
	m.queries[q.ID] = &c
	return nil
}

func (m *MemoryStore) DeleteQuery(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.queries[id]; !ok {
		return ErrNotFound
	}
	delete(m.queries, id)
	return nil
}

func (m *MemoryStore) AppendAudit(e *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c := *e
	m.audit = append(m.audit, &c)
	return nil
}

func (m *MemoryStore) ListAudit() ([]*AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*AuditEntry, 0, len(m.audit))
	for _, e := range m.audit {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) ClearAudit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit = nil
	return nil
}
