/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseIdentity decodes the identity record left by the sign-in flow: the
// player's User as JSON, base64url encoded without padding.
func ParseIdentity(raw string) (User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return User{}, ErrNoIdentity
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	if strings.TrimSpace(u.ID) == "" {
		return User{}, fmt.Errorf("%w: missing id", ErrNoIdentity)
	}

	return u, nil
}

// EncodeIdentity is the inverse of ParseIdentity.
func EncodeIdentity(u User) (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}
