package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/volantix/siteapi/internal/permission"
)

// PostgresStore is the server-database adapter.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings, and applies the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			permissions TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS blogs (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			change TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) GetUserByID(id int) (*User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByIdentifier(identifier string) (*User, error) {
	row := s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($1) LIMIT 1",
		identifier,
	)
	return scanUser(row)
}

func (s *PostgresStore) ListUsers() ([]*User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) CreateUser(u *User) (*User, error) {
	perms, err := marshalPerms(u.Permissions)
	if err != nil {
		return nil, err
	}

	created := *u
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}

	if created.ID > 0 {
		_, err = s.db.Exec(
			"INSERT INTO users (id, username, email, password, permissions, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			created.ID, created.Username, created.Email, created.Password, perms, created.CreatedAt,
		)
		if err != nil {
			return nil, mapPostgresConflict(err)
		}
		// An explicit id bypasses the DEFAULT nextval, leaving the sequence
		// behind the table; the next auto-assigned insert would collide.
		if _, err := s.db.Exec(
			"SELECT setval(pg_get_serial_sequence('users', 'id'), (SELECT COALESCE(MAX(id), 1) FROM users))",
		); err != nil {
			return nil, fmt.Errorf("advance users id sequence: %w", err)
		}
		return &created, nil
	}

	err = s.db.QueryRow(
		"INSERT INTO users (username, email, password, permissions, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		created.Username, created.Email, created.Password, perms, created.CreatedAt,
	).Scan(&created.ID)
	if err != nil {
		return nil, mapPostgresConflict(err)
	}
	return &created, nil
}

func (s *PostgresStore) UpdateUserPermissions(id int, m permission.Matrix) error {
	perms, err := marshalPerms(m)
	if err != nil {
		return err
	}
	return execExpectingRow(s.db, "UPDATE users SET permissions = $1 WHERE id = $2", perms, id)
}

func (s *PostgresStore) UpdateUserPassword(id int, stored string) error {
	return execExpectingRow(s.db, "UPDATE users SET password = $1 WHERE id = $2", stored, id)
}

func (s *PostgresStore) DeleteUser(id int) error {
	return execExpectingRow(s.db, "DELETE FROM users WHERE id = $1", id)
}

func (s *PostgresStore) ListProducts() ([]*Product, error) {
	rows, err := s.db.Query("SELECT id, name, description, category, image_url, created_at FROM products ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) GetProduct(id int) (*Product, error) {
	var p Product
	err := s.db.QueryRow(
		"SELECT id, name, description, category, image_url, created_at FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateProduct(p *Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO products (id, name, description, category, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		p.ID, p.Name, p.Description, p.Category, p.ImageURL, p.CreatedAt,
	)
	return mapPostgresConflict(err)
}

func (s *PostgresStore) UpdateProduct(p *Product) error {
	return execExpectingRow(s.db,
		"UPDATE products SET name = $1, description = $2, category = $3, image_url = $4 WHERE id = $5",
		p.Name, p.Description, p.Category, p.ImageURL, p.ID,
	)
}

func (s *PostgresStore) DeleteProduct(id int) error {
	return execExpectingRow(s.db, "DELETE FROM products WHERE id = $1", id)
}

func (s *PostgresStore) ListServices() ([]*Service, error) {
	rows, err := s.db.Query("SELECT id, title, description, icon, created_at FROM services ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []*Service
	for rows.Next() {
		var sv Service
		if err := rows.Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Icon, &sv.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, &sv)
	}
	return services, rows.Err()
}

func (s *PostgresStore) GetService(id int) (*Service, error) {
	var sv Service
	err := s.db.QueryRow(
		"SELECT id, title, description, icon, created_at FROM services WHERE id = $1", id,
	).Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Icon, &sv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

func (s *PostgresStore) CreateService(sv *Service) error {
	if sv.CreatedAt.IsZero() {
		sv.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO services (id, title, description, icon, created_at) VALUES ($1, $2, $3, $4, $5)",
		sv.ID, sv.Title, sv.Description, sv.Icon, sv.CreatedAt,
	)
	return mapPostgresConflict(err)
}

func (s *PostgresStore) UpdateService(sv *Service) error {
	return execExpectingRow(s.db,
		"UPDATE services SET title = $1, description = $2, icon = $3 WHERE id = $4",
		sv.Title, sv.Description, sv.Icon, sv.ID,
	)
}

func (s *PostgresStore) DeleteService(id int) error {
	return execExpectingRow(s.db, "DELETE FROM services WHERE id = $1", id)
}

func (s *PostgresStore) ListBlogs() ([]*Blog, error) {
	rows, err := s.db.Query("SELECT id, title, author, summary, content, created_at FROM blogs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs []*Blog
	for rows.Next() {
		var b Blog
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Summary, &b.Content, &b.CreatedAt); err != nil {
			return nil, err
		}
		blogs = append(blogs, &b)
	}
	return blogs, rows.Err()
}

func (s *PostgresStore) GetBlog(id int) (*Blog, error) {
	var b Blog
	err := s.db.QueryRow(
		"SELECT id, title, author, summary, content, created_at FROM blogs WHERE id = $1", id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Summary, &b.Content, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) CreateBlog(b *Blog) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO blogs (id, title, author, summary, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		b.ID, b.Title, b.Author, b.Summary, b.Content, b.CreatedAt,
	)
	return mapPostgresConflict(err)
}

func (s *PostgresStore) UpdateBlog(b *Blog) error {
	return execExpectingRow(s.db,
		"UPDATE blogs SET title = $1, author = $2, summary = $3, content = $4 WHERE id = $5",
		b.Title, b.Author, b.Summary, b.Content, b.ID,
	)
}

func (s *PostgresStore) DeleteBlog(id int) error {
	return execExpectingRow(s.db, "DELETE FROM blogs WHERE id = $1", id)
}

func (s *PostgresStore) ListQueries() ([]*Query, error) {
	rows, err := s.db.Query("SELECT id, name, email, phone, message, created_at FROM queries ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []*Query
	for rows.Next() {
		var q Query
		if err := rows.Scan(&q.ID, &q.Name, &q.Email, &q.Phone, &q.Message, &q.CreatedAt); err != nil {
			return nil, err
		}
		queries = append(queries, &q)
	}
	return queries, rows.Err()
}

func (s *PostgresStore) CreateQuery(q *Query) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO queries (id, name, email, phone, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		q.ID, q.Name, q.Email, q.Phone, q.Message, q.CreatedAt,
	)
	return mapPostgresConflict(err)
}

func (s *PostgresStore) DeleteQuery(id string) error {
	return execExpectingRow(s.db, "DELETE FROM queries WHERE id = $1", id)
}

func (s *PostgresStore) AppendAudit(e *AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO audit_log (id, username, change, created_at) VALUES ($1, $2, $3, $4)",
		e.ID, e.Username, e.Change, e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListAudit() ([]*AuditEntry, error) {
	rows, err := s.db.Query("SELECT id, username, change, created_at FROM audit_log ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Change, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ClearAudit() error {
	_, err := s.db.Exec("DELETE FROM audit_log")
	return err
}

// mapPostgresConflict turns unique-violation errors (class 23505) into
// ErrConflict.
func mapPostgresConflict(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}
	return err
}
