package users

// UserRepo is the storage used by the fake backend that stands in for the user service.
type UserRepo interface {
	Upsert(user *User) error
	Delete(id string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) (UsersPage, error)
}
