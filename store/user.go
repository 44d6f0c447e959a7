package store

import "context"

// Role is the type of a role.
type Role string

const (
	// RoleAdmin is the ADMIN role. The first registered user gets it.
	RoleAdmin Role = "ADMIN"
	// RoleUser is the USER role.
	RoleUser Role = "USER"
)

func (e Role) String() string {
	return string(e)
}

type User struct {
	ID           int32
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedTs    int64
	UpdatedTs    int64
}

type FindUser struct {
	ID       *int32
	Username *string
	Email    *string
	Role     *Role
}

type UpdateUser struct {
	ID           int32
	Username     *string
	Email        *string
	PasswordHash *string
}

// CreateUser inserts a user. An empty Role is resolved inside the insert
// transaction: ADMIN when the table is empty, USER otherwise.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	return s.driver.UpdateUser(ctx, update)
}

func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	return s.driver.ListUsers(ctx, find)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}
