package validation

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordLen ограничивает работу argon2 на один запрос
	MaxPasswordLen = 128
	// MaxEmailLen максимальная длина email (RFC 5321)
	MaxEmailLen = 254
)

// NormalizeEmail обрезает пробелы и приводит email к нижнему регистру
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет, что email уже нормализован и является одиночным адресом
// без display name, например "alice@example.com"
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("email has invalid format")
	}

	// mail.ParseAddress принимает "alice@localhost"; требуем домен с точкой
	domain := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("email has invalid format")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
// Длина: 8-128 байт
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLen)
	}

	return nil
}
