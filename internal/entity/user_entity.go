package entity

import "time"

type User struct {
	Id         string    `bson:"_id" json:"id"`
	FullName   string    `bson:"fullName" json:"fullName"`
	Email      string    `bson:"email" json:"email"`
	Password   string    `bson:"password" json:"-"` // Don't expose password in JSON
	ProfilePic string    `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
	IsOnline   bool      `bson:"isOnline" json:"isOnline"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}
