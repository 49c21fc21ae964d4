package util

import (
	"errors"
	"strings"
)

const maxUsernameLength = 150

// NormalizeUsername trims the username and rejects empty or oversized values.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("username is required")
	}
	if len(username) > maxUsernameLength {
		return "", errors.New("username too long (max 150 characters)")
	}
	return username, nil
}
