/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

// A participant may be named for only one question across the whole card,
// so both lists below drop everyone already used. Roster order is kept.

// AvailableParticipants lists who can still be named for an unanswered
// question: the roster minus self minus everyone already named on the card.
func AvailableParticipants(card *Card, participants []User, self User) []User {
	if card == nil {
		return []User{}
	}

	return filterParticipants(participants, self, card.usedIDs(0, false))
}

// EditAvailableParticipants is like AvailableParticipants, except the
// participant currently named for the question being edited stays on offer.
func EditAvailableParticipants(card *Card, participants []User, self User, editing int) []User {
	if card == nil {
		return []User{}
	}

	return filterParticipants(participants, self, card.usedIDs(editing, true))
}

func filterParticipants(participants []User, self User, used map[string]bool) []User {
	out := make([]User, 0, len(participants))
	for _, p := range participants {
		if p.ID == self.ID || used[p.ID] {
			continue
		}
		out = append(out, p)
	}

	return out
}

// Option is one entry of a participant select box. An empty Value removes
// the answer.
type Option struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Current bool   `json:"current,omitempty"`
}

// EditOptions builds the select shown while editing a question: remove,
// then the current holder, then everyone else still free.
func EditOptions(card *Card, participants []User, self User, editing int) []Option {
	opts := []Option{{Value: "", Label: "Remove answer"}}

	current, ok := card.AnswerFor(editing)
	if ok {
		opts = append(opts, Option{
			Value:   current.ID,
			Label:   current.Name + " (current)",
			Current: true,
		})
	}

	for _, p := range EditAvailableParticipants(card, participants, self, editing) {
		if ok && p.ID == current.ID {
			continue
		}
		opts = append(opts, Option{Value: p.ID, Label: p.Name})
	}

	return opts
}

// SelectOptions builds the select shown for a new answer.
func SelectOptions(card *Card, participants []User, self User) []Option {
	available := AvailableParticipants(card, participants, self)

	label := "Choose a person"
	if len(available) == 0 {
		label = "No people left"
	}

	opts := make([]Option, 0, len(available)+1)
	opts = append(opts, Option{Value: "", Label: label})
	for _, p := range available {
		opts = append(opts, Option{Value: p.ID, Label: p.Name})
	}

	return opts
}

func containsID(users []User, id string) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}

	return false
}
