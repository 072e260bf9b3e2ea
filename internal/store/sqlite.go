package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/volantix/siteapi/internal/permission"
)

// SQLiteStore is the embedded single-file adapter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database file and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password TEXT NOT NULL,
			permissions TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS blogs (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			change TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func marshalPerms(m permission.Matrix) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal permissions: %w", err)
	}
	return string(raw), nil
}

func unmarshalPerms(raw string) (permission.Matrix, error) {
	var m permission.Matrix
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return permission.Matrix{}, fmt.Errorf("unmarshal permissions: %w", err)
	}
	return m, nil
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u     User
		perms string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &perms, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	decoded, err := unmarshalPerms(perms)
	if err != nil {
		return nil, err
	}
	u.Permissions = decoded
	return &u, nil
}

const userColumns = "id, username, email, password, permissions, created_at"

func (s *SQLiteStore) GetUserByID(id int) (*User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByIdentifier(identifier string) (*User, error) {
	row := s.db.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = ? OR email = ? LIMIT 1",
		identifier, identifier,
	)
	return scanUser(row)
}

func (s *SQLiteStore) ListUsers() ([]*User, error) {
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

func (s *SQLiteStore) CreateUser(u *User) (*User, error) {
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
			"INSERT INTO users (id, username, email, password, permissions, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			created.ID, created.Username, created.Email, created.Password, perms, created.CreatedAt,
		)
		if err != nil {
			return nil, mapSQLiteConflict(err)
		}
		return &created, nil
	}

	res, err := s.db.Exec(
		"INSERT INTO users (username, email, password, permissions, created_at) VALUES (?, ?, ?, ?, ?)",
		created.Username, created.Email, created.Password, perms, created.CreatedAt,
	)
	if err != nil {
		return nil, mapSQLiteConflict(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created.ID = int(id)
	return &created, nil
}

func (s *SQLiteStore) UpdateUserPermissions(id int, m permission.Matrix) error {
	perms, err := marshalPerms(m)
	if err != nil {
		return err
	}
	return execExpectingRow(s.db, "UPDATE users SET permissions = ? WHERE id = ?", perms, id)
}

func (s *SQLiteStore) UpdateUserPassword(id int, stored string) error {
	return execExpectingRow(s.db, "UPDATE users SET password = ? WHERE id = ?", stored, id)
}

func (s *SQLiteStore) DeleteUser(id int) error {
	return execExpectingRow(s.db, "DELETE FROM users WHERE id = ?", id)
}

func (s *SQLiteStore) ListProducts() ([]*Product, error) {
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

func (s *SQLiteStore) GetProduct(id int) (*Product, error) {
	var p Product
	err := s.db.QueryRow(
		"SELECT id, name, description, category, image_url, created_at FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProduct(p *Product) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO products (id, name, description, category, image_url, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Description, p.Category, p.ImageURL, p.CreatedAt,
	)
	return mapSQLiteConflict(err)
}

func (s *SQLiteStore) UpdateProduct(p *Product) error {
	return execExpectingRow(s.db,
		"UPDATE products SET name = ?, description = ?, category = ?, image_url = ? WHERE id = ?",
		p.Name, p.Description, p.Category, p.ImageURL, p.ID,
	)
}

func (s *SQLiteStore) DeleteProduct(id int) error {
	return execExpectingRow(s.db, "DELETE FROM products WHERE id = ?", id)
}

func (s *SQLiteStore) ListServices() ([]*Service, error) {
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

func (s *SQLiteStore) GetService(id int) (*Service, error) {
	var sv Service
	err := s.db.QueryRow(
		"SELECT id, title, description, icon, created_at FROM services WHERE id = ?", id,
	).Scan(&sv.ID, &sv.Title, &sv.Description, &sv.Icon, &sv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sv, nil
}

func (s *SQLiteStore) CreateService(sv *Service) error {
	if sv.CreatedAt.IsZero() {
		sv.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO services (id, title, description, icon, created_at) VALUES (?, ?, ?, ?, ?)",
		sv.ID, sv.Title, sv.Description, sv.Icon, sv.CreatedAt,
	)
	return mapSQLiteConflict(err)
}

func (s *SQLiteStore) UpdateService(sv *Service) error {
	return execExpectingRow(s.db,
		"UPDATE services SET title = ?, description = ?, icon = ? WHERE id = ?",
		sv.Title, sv.Description, sv.Icon, sv.ID,
	)
}

func (s *SQLiteStore) DeleteService(id int) error {
	return execExpectingRow(s.db, "DELETE FROM services WHERE id = ?", id)
}

func (s *SQLiteStore) ListBlogs() ([]*Blog, error) {
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

func (s *SQLiteStore) GetBlog(id int) (*Blog, error) {
	var b Blog
	err := s.db.QueryRow(
		"SELECT id, title, author, summary, content, created_at FROM blogs WHERE id = ?", id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Summary, &b.Content, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) CreateBlog(b *Blog) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO blogs (id, title, author, summary, content, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		b.ID, b.Title, b.Author, b.Summary, b.Content, b.CreatedAt,
	)
	return mapSQLiteConflict(err)
}

func (s *SQLiteStore) UpdateBlog(b *Blog) error {
	return execExpectingRow(s.db,
		"UPDATE blogs SET title = ?, author = ?, summary = ?, content = ? WHERE id = ?",
		b.Title, b.Author, b.Summary, b.Content, b.ID,
	)
}

func (s *SQLiteStore) DeleteBlog(id int) error {
	return execExpectingRow(s.db, "DELETE FROM blogs WHERE id = ?", id)
}

func (s *SQLiteStore) ListQueries() ([]*Query, error) {
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

func (s *SQLiteStore) CreateQuery(q *Query) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO queries (id, name, email, phone, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		q.ID, q.Name, q.Email, q.Phone, q.Message, q.CreatedAt,
	)
	return mapSQLiteConflict(err)
}

func (s *SQLiteStore) DeleteQuery(id string) error {
	return execExpectingRow(s.db, "DELETE FROM queries WHERE id = ?", id)
}

func (s *SQLiteStore) AppendAudit(e *AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO audit_log (id, username, change, created_at) VALUES (?, ?, ?, ?)",
		e.ID, e.Username, e.Change, e.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListAudit() ([]*AuditEntry, error) {
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

func (s *SQLiteStore) ClearAudit() error {
	_, err := s.db.Exec("DELETE FROM audit_log")
	return err
}

// execExpectingRow runs a mutation that must touch exactly one row,
// translating zero affected rows into ErrNotFound.
func execExpectingRow(db *sql.DB, query string, args ...any) error {
	res, err := db.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// mapSQLiteConflict turns unique/primary key violations into ErrConflict.
// modernc.org/sqlite surfaces them as constraint errors in the message.
func mapSQLiteConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "constraint") {
		return ErrConflict
	}
	return err
}
