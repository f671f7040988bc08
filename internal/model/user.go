package model

// Role names carried in the bearer token's "role" claim.
const (
	RoleDriver = "DRIVER"
	RoleStaff  = "STAFF"
	RoleAdmin  = "ADMIN"
)

// User is the read-only view of a row in the `users` table.  Accounts are
// managed elsewhere; the engine only needs contact details for bookings and
// notifications.
//
// Fields:
//
//	ID          – primary key identifier of the user.
//	DisplayName – name shown on receipts.
//	Mobile      – default mobile number copied onto reservations.
//	Email       – contact address used by notification templates.
//	Role        – DRIVER, STAFF or ADMIN.
type User struct {
	ID          uint64 `db:"id"`           // users.id
	DisplayName string `db:"display_name"` // users.display_name
	Mobile      string `db:"mobile"`       // users.mobile
	Email       string `db:"email"`        // users.email
	Role        string `db:"role"`         // users.role
}

// IsStaff reports whether the role may act on other users' reservations.
func IsStaff(role string) bool {
	return role == RoleStaff || role == RoleAdmin
}
