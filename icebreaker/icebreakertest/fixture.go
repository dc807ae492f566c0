/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreakertest

import (
	"github.com/Seednode/icebreaker/icebreaker"
)

// Party is a small game: the acting player, four other participants and a
// three question card with no answers yet.
type Party struct {
	Self   icebreaker.User
	Others []icebreaker.User
	Card   icebreaker.Card
}

func NewParty() Party {
	return Party{
		Self: icebreaker.User{ID: "u-self", Name: "Sam Self", Username: "sam", PhotoURL: "/photos/sam.webp"},
		Others: []icebreaker.User{
			{ID: "u-ada", Name: "Ada", Username: "ada", PhotoURL: "/photos/ada.webp"},
			{ID: "u-bo", Name: "Bo", Username: "bo", PhotoURL: "/photos/bo.webp"},
			{ID: "u-cy", Name: "Cy", Username: "cy", PhotoURL: "/photos/cy.webp"},
			{ID: "u-di", Name: "Di", Username: "di", PhotoURL: "/photos/di.webp"},
		},
		Card: icebreaker.Card{
			DBID:     "card-db-1",
			CardID:   7,
			Title:    "Find someone who",
			Subtitle: "A different person for every question",
			Questions: []icebreaker.Question{
				{Number: 1, Text: "has been to Lapland"},
				{Number: 2, Text: "plays an instrument"},
				{Number: 3, Text: "has a pet"},
			},
			Answers: map[int]icebreaker.User{},
		},
	}
}

// Roster is everyone in the party, the acting player included, in a fixed
// order.
func (p Party) Roster() []icebreaker.User {
	roster := make([]icebreaker.User, 0, len(p.Others)+1)
	for i, u := range p.Others {
		if i == 2 {
			roster = append(roster, p.Self)
		}
		roster = append(roster, u)
	}
	if len(p.Others) < 3 {
		roster = append(roster, p.Self)
	}

	return roster
}

// Install loads the party into b.
func (p Party) Install(b *Backend) {
	b.SetRoster(p.Roster()...)
	b.SetCard(p.Self.ID, p.Card)
}
