package models

import "time"

// User is an author record kept in the Postgres user directory
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	UserName       string    `json:"userName" gorm:"uniqueIndex;size:20"`
	FullName       string    `json:"fullName" gorm:"size:100"`
	Email          string    `json:"email" gorm:"uniqueIndex"`
	AvatarPublicID string    `json:"-" gorm:"size:255"` // storage identifier of the profile photo
	AvatarURL      string    `json:"-"`                 // direct profile photo URL
	FirebaseUID    string    `json:"firebase_uid,omitempty" gorm:"index"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SerializedAuthor is the public author shape embedded in feed items and thread nodes
type SerializedAuthor struct {
	ID        string `json:"_id"`
	UserName  string `json:"userName"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatarUrl"`
}
