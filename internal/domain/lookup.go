package domain

// User is the responsible party an expiration can be assigned to.
type User struct {
	ID       string
	Username string
	FullName string
	Email    string
}

// Priority is a shared lookup entity carrying a display color.
type Priority struct {
	ID    string
	Name  string
	Color string
}

// Sector is a shared lookup entity carrying a display color.
type Sector struct {
	ID    string
	Name  string
	Color string
}
