package data

import "errors"

var (
	ErrDuplicateUser    = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateContact = errors.New("contact already exists")
	ErrContactNotFound  = errors.New("contact not found")
)
