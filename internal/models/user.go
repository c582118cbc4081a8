package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время создания
	ID           string    `json:"id"`         // UUID пользователя
	Email        string    `json:"email"`      // уникальный email в нижнем регистре
	PasswordHash string    `json:"-"`          // argon2id хеш пароля (PHC строка)
}
