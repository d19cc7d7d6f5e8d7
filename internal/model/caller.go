package model

// Role is the kind of user behind a request.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Caller identifies who issued a request. It is resolved from the bearer
// token and passed explicitly to every service call.
type Caller struct {
	ID    string
	Email string
	Role  Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func (c Caller) IsStudent() bool {
	return c.Role == RoleStudent
}

func (c Caller) IsTeacher() bool {
	return c.Role == RoleTeacher
}
