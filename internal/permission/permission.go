package permission

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Capability names a single guarded action, in "category.action" form.
type Capability string

const (
	CapAddUser    Capability = "user.addUser"
	CapEditUser   Capability = "user.editUser"
	CapDeleteUser Capability = "user.deleteUser"
	CapViewUsers  Capability = "user.viewUsers"

	CapAddProducts    Capability = "product.addProducts"
	CapEditProducts   Capability = "product.editProducts"
	CapDeleteProducts Capability = "product.deleteProducts"

	CapAddServices    Capability = "service.addServices"
	CapEditServices   Capability = "service.editServices"
	CapDeleteServices Capability = "service.deleteServices"

	CapAddBlogs    Capability = "blog.addBlogs"
	CapEditBlogs   Capability = "blog.editBlogs"
	CapDeleteBlogs Capability = "blog.deleteBlogs"

	CapViewQueries   Capability = "query.viewQueries"
	CapDeleteQueries Capability = "query.deleteQueries"

	CapViewLogs   Capability = "log.viewLogs"
	CapDeleteLogs Capability = "log.deleteLogs"
)

// capabilities fixes the bit assignment order. Append-only: reordering
// would silently remap bits in issued sessions.
var capabilities = []Capability{
	CapAddUser, CapEditUser, CapDeleteUser, CapViewUsers,
	CapAddProducts, CapEditProducts, CapDeleteProducts,
	CapAddServices, CapEditServices, CapDeleteServices,
	CapAddBlogs, CapEditBlogs, CapDeleteBlogs,
	CapViewQueries, CapDeleteQueries,
	CapViewLogs, CapDeleteLogs,
}

var capBits = func() map[Capability]int {
	bits := make(map[Capability]int, len(capabilities))
	for i, c := range capabilities {
		bits[c] = i
	}
	return bits
}()

// Bit returns the bit index for a capability, or false when unregistered.
func Bit(c Capability) (int, bool) {
	bit, ok := capBits[c]
	return bit, ok
}

// Mask64 is a capability bitmask.
type Mask64 uint64

// Has reports whether the bit is set. Out-of-range bits are never set.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (m & (1 << bit)) != 0
}

// Set sets the bit. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

// Allows is the single authorization primitive: true only for a registered
// capability whose bit is set.
func (m Mask64) Allows(c Capability) bool {
	bit, ok := capBits[c]
	if !ok {
		return false
	}
	return m.Has(bit)
}

// Category permission groups. Field names mirror the admin UI payloads.

type UserPerms struct {
	AddUser    bool `json:"addUser"`
	EditUser   bool `json:"editUser"`
	DeleteUser bool `json:"deleteUser"`
	ViewUsers  bool `json:"viewUsers"`
}

type ProductPerms struct {
	AddProducts    bool `json:"addProducts"`
	EditProducts   bool `json:"editProducts"`
	DeleteProducts bool `json:"deleteProducts"`
}

type ServicePerms struct {
	AddServices    bool `json:"addServices"`
	EditServices   bool `json:"editServices"`
	DeleteServices bool `json:"deleteServices"`
}

type BlogPerms struct {
	AddBlogs    bool `json:"addBlogs"`
	EditBlogs   bool `json:"editBlogs"`
	DeleteBlogs bool `json:"deleteBlogs"`
}

type QueryPerms struct {
	ViewQueries   bool `json:"viewQueries"`
	DeleteQueries bool `json:"deleteQueries"`
}

type LogPerms struct {
	ViewLogs   bool `json:"viewLogs"`
	DeleteLogs bool `json:"deleteLogs"`
}

// Matrix is the six-category permission set attached to a user record and
// snapshotted into session claims at login.
type Matrix struct {
	User    UserPerms    `json:"user"`
	Product ProductPerms `json:"product"`
	Service ServicePerms `json:"service"`
	Blog    BlogPerms    `json:"blog"`
	Query   QueryPerms   `json:"query"`
	Log     LogPerms     `json:"log"`
}

var requiredCategories = []string{"user", "product", "service", "blog", "query", "log"}

// ErrMalformedMatrix is returned when a permission payload is missing a
// required category or a category is not an object.
var ErrMalformedMatrix = errors.New("malformed permission matrix")

// UnmarshalJSON decodes a matrix strictly: the payload must be an object
// carrying all six category keys, each itself an object. Anything else fails
// closed — claims are client-held and never trusted blindly.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
	}

	for _, category := range requiredCategories {
		section, ok := raw[category]
		if !ok {
			return fmt.Errorf("%w: missing category %q", ErrMalformedMatrix, category)
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(section, &probe); err != nil {
			return fmt.Errorf("%w: category %q is not an object", ErrMalformedMatrix, category)
		}
	}

	type plain Matrix
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMatrix, err)
	}

	*m = Matrix(decoded)
	return nil
}

// granted reports the flag backing a capability. The default arm makes
// every unknown capability a denial by construction.
func (m *Matrix) granted(c Capability) bool {
	switch c {
	case CapAddUser:
		return m.User.AddUser
	case CapEditUser:
		return m.User.EditUser
	case CapDeleteUser:
		return m.User.DeleteUser
	case CapViewUsers:
		return m.User.ViewUsers
	case CapAddProducts:
		return m.Product.AddProducts
	case CapEditProducts:
		return m.Product.EditProducts
	case CapDeleteProducts:
		return m.Product.DeleteProducts
	case CapAddServices:
		return m.Service.AddServices
	case CapEditServices:
		return m.Service.EditServices
	case CapDeleteServices:
		return m.Service.DeleteServices
	case CapAddBlogs:
		return m.Blog.AddBlogs
	case CapEditBlogs:
		return m.Blog.EditBlogs
	case CapDeleteBlogs:
		return m.Blog.DeleteBlogs
	case CapViewQueries:
		return m.Query.ViewQueries
	case CapDeleteQueries:
		return m.Query.DeleteQueries
	case CapViewLogs:
		return m.Log.ViewLogs
	case CapDeleteLogs:
		return m.Log.DeleteLogs
	default:
		return false
	}
}

// Mask folds the matrix into its bitmask form.
func (m *Matrix) Mask() Mask64 {
	var mask Mask64
	for bit, c := range capabilities {
		if m.granted(c) {
			mask.Set(bit)
		}
	}
	return mask
}

// Allowed is the generic authorize gate used by every admin handler.
func Allowed(m *Matrix, c Capability) bool {
	if m == nil {
		return false
	}
	return m.Mask().Allows(c)
}

// FullMatrix grants everything. Seeded onto the protected administrator
// record (id 1), whose permissions are immutable.
func FullMatrix() Matrix {
	return Matrix{
		User:    UserPerms{AddUser: true, EditUser: true, DeleteUser: true, ViewUsers: true},
		Product: ProductPerms{AddProducts: true, EditProducts: true, DeleteProducts: true},
		Service: ServicePerms{AddServices: true, EditServices: true, DeleteServices: true},
		Blog:    BlogPerms{AddBlogs: true, EditBlogs: true, DeleteBlogs: true},
		Query:   QueryPerms{ViewQueries: true, DeleteQueries: true},
		Log:     LogPerms{ViewLogs: true, DeleteLogs: true},
	}
}
