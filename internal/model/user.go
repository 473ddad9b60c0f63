package model

import "time"

// Role names stored in the user_roles table.  Presence of RoleAdmin is the
// sole signal for privileged operations; there is no separate permissions
// system.
const (
    RoleUser  = "user"
    RoleAdmin = "admin"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The json tags are omitted
// here because these structs are primarily used internally by the
// repository and service layers; handlers define separate response types
// with appropriate JSON tags.
//
// Fields:
//  ID             – UUID primary key of the user.
//  Email          – unique, lower-cased email address.
//  PasswordHash   – bcrypt hashed password.
//  EmailConfirmed – whether the address was confirmed via emailed token.
//  CreatedAt      – timestamp of creation.
type User struct {
    ID             string    // users.id
    Email          string    // users.email
    PasswordHash   string    // users.password_hash
    EmailConfirmed bool      // users.email_confirmed
    CreatedAt      time.Time // users.created_at
}

// Profile is the 1:1 public-facing companion of a User, created in the
// same transaction as the user row.  Its primary key equals the user id.
type Profile struct {
    ID        string    // profiles.id (= users.id)
    Username  string    // profiles.username
    AvatarURL string    // profiles.avatar_url
    CreatedAt time.Time // profiles.created_at
}

// RoleAssignment models a row in the `user_roles` table.  A user may hold
// several rows; the set of role values is what matters.
type RoleAssignment struct {
    ID     string // user_roles.id
    UserID string // user_roles.user_id
    Role   string // user_roles.role
}
