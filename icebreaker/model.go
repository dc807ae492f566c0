/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package icebreaker implements the player side of the icebreaker matching
// game: each player gets a card of questions and has to name a different
// participant for every question.
package icebreaker

// User is a participant, or the player acting on a card.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	PhotoURL string `json:"photoUrl"`
}

// Question is immutable and keyed by Number, not by its position on the card.
type Question struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Card holds the questions of one player and the participant named for each.
// Answers is keyed by question number.
type Card struct {
	DBID      string       `json:"dbId"`
	CardID    int          `json:"cardId"`
	Title     string       `json:"title"`
	Subtitle  string       `json:"subtitle"`
	Questions []Question   `json:"questions"`
	Answers   map[int]User `json:"answers"`
}

// Question returns the question with the given number.
func (c *Card) Question(number int) (Question, bool) {
	if c == nil {
		return Question{}, false
	}

	for _, q := range c.Questions {
		if q.Number == number {
			return q, true
		}
	}

	return Question{}, false
}

// AnswerFor returns the participant named for a question, if any.
func (c *Card) AnswerFor(number int) (User, bool) {
	if c == nil || c.Answers == nil {
		return User{}, false
	}

	u, ok := c.Answers[number]

	return u, ok
}

func (c *Card) AnsweredCount() int {
	if c == nil {
		return 0
	}

	return len(c.Answers)
}

// usedIDs collects the ids of every answered participant, skipping the
// answer to the question numbered skip when skipOK is set.
func (c *Card) usedIDs(skip int, skipOK bool) map[string]bool {
	used := make(map[string]bool, c.AnsweredCount())
	if c == nil {
		return used
	}

	for number, u := range c.Answers {
		if skipOK && number == skip {
			continue
		}
		used[u.ID] = true
	}

	return used
}

// GameState is the admin flag telling whether the game has started.
type GameState struct {
	IsIcebreakerEnabled bool `json:"isIcebreakerEnabled"`
}
