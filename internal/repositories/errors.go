package repositories

import "errors"

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrParentNotFound = errors.New("parent post not found")
	ErrInvalidID      = errors.New("invalid id format")
	ErrLikeConflict   = errors.New("concurrent like toggle conflict")
	ErrUserNotFound   = errors.New("user not found")
)
