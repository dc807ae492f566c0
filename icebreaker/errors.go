/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

import (
	"errors"
	"fmt"
)

var (
	ErrNoIdentity      = errors.New("no identity record")
	ErrNoCard          = errors.New("card not loaded")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrBusy            = errors.New("another answer is being saved")
	ErrNoSelection     = errors.New("no participant selected")
	ErrEditInProgress  = errors.New("finish editing first")
	ErrNoneAvailable   = errors.New("no people left")
	ErrAnswered        = errors.New("question already answered")
	ErrNotAnswered     = errors.New("question has no answer")
	ErrNotAvailable    = errors.New("participant is not available")
	ErrWrongPhase      = errors.New("action not allowed right now")
)

// Generic messages shown when the backend gives no reason of its own.
const (
	msgGameStatus   = "Failed to check game status"
	msgLoad         = "Error loading game data"
	msgFetchCard    = "Failed to fetch card"
	msgFetchRoster  = "Failed to fetch participants"
	msgFetchUpdated = "Failed to fetch updated card"
	msgSubmit       = "Failed to submit answer"
	msgUpdate       = "Failed to update answer"
	msgDelete       = "Failed to delete answer"
)

// APIError is a non-2xx answer from the game backend. Message is the body's
// "error" field and may be empty.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}

	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Message turns err into the single line shown to the player.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var userErr *userError
	if errors.As(err, &userErr) {
		return userErr.msg
	}

	switch {
	case errors.Is(err, ErrBusy),
		errors.Is(err, ErrEditInProgress),
		errors.Is(err, ErrNoneAvailable),
		errors.Is(err, ErrAnswered),
		errors.Is(err, ErrNotAnswered),
		errors.Is(err, ErrNotAvailable),
		errors.Is(err, ErrUnknownQuestion),
		errors.Is(err, ErrWrongPhase),
		errors.Is(err, ErrNoCard):
		return capitalize(err.Error())
	}

	return fallback
}

// userError carries a fixed player-facing text around a lower level cause.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return e.msg + ": " + e.err.Error()
}

func (e *userError) Unwrap() error {
	return e.err
}

func withMessage(msg string, err error) error {
	return &userError{msg: msg, err: err}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}

	return string(s[0]-'a'+'A') + s[1:]
}
