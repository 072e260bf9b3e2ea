// Package store is the record store behind the public catalog and the admin
// back-office: users, products, services, blogs, contact queries, and the
// audit trail.
//
// Three adapters implement the same interface: an in-memory map store for
// tests and development, an embedded SQLite file, and PostgreSQL. The
// adapter is selected by configuration at startup.
package store

import (
	"errors"
	"time"

	"github.com/volantix/siteapi/internal/permission"
)

var (
	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a unique key (id, username, email) is taken.
	ErrConflict = errors.New("record already exists")
)

// User is an admin account. Password holds either legacy plaintext or the
// encrypted "ivHex:ciphertextHex" form; the credential verifier decides.
type User struct {
	ID          int               `json:"id"`
	Username    string            `json:"username"`
	Email       string            `json:"email"`
	Password    string            `json:"-"`
	Permissions permission.Matrix `json:"permissions"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// AdminUserID is the protected administrator record: permissions immutable,
// record undeletable.
const AdminUserID = 1

// Product is a catalog entry. IDs are chosen by the admin UI, hence the
// duplicate-id conflict path.
type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Service is a services-page entry.
type Service struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Blog is a blog post.
type Blog struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Query is a contact-form submission awaiting admin review.
type Query struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEntry is one line of the admin audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Change    string    `json:"change"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordStore is the persistence contract. Mutations are single-record;
// uniqueness violations surface as ErrConflict, absent targets as
// ErrNotFound.
type RecordStore interface {
	Init() error
	Close() error

	GetUserByID(id int) (*User, error)
	GetUserByIdentifier(identifier string) (*User, error)
	ListUsers() ([]*User, error)
	CreateUser(u *User) (*User, error)
	UpdateUserPermissions(id int, m permission.Matrix) error
	UpdateUserPassword(id int, stored string) error
	DeleteUser(id int) error

	ListProducts() ([]*Product, error)
	GetProduct(id int) (*Product, error)
	CreateProduct(p *Product) error
	UpdateProduct(p *Product) error
	DeleteProduct(id int) error

	ListServices() ([]*Service, error)
	GetService(id int) (*Service, error)
	CreateService(s *Service) error
	UpdateService(s *Service) error
	DeleteService(id int) error

	ListBlogs() ([]*Blog, error)
	GetBlog(id int) (*Blog, error)
	CreateBlog(b *Blog) error
	UpdateBlog(b *Blog) error
	DeleteBlog(id int) error

	ListQueries() ([]*Query, error)
	CreateQuery(q *Query) error
	DeleteQuery(id string) error

	AppendAudit(e *AuditEntry) error
	ListAudit() ([]*AuditEntry, error)
	ClearAudit() error
}
