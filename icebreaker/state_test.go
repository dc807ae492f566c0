/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/icebreaker/icebreaker"
	"github.com/Seednode/icebreaker/icebreaker/icebreakertest"
)

func loadedState(t *testing.T, p icebreakertest.Party) icebreaker.State {
	t.Helper()

	card := p.Card
	s, err := icebreaker.Apply(icebreaker.NewState(p.Self), icebreaker.Loaded{
		Card:         &card,
		Participants: p.Roster(),
	})
	require.NoError(t, err)

	return s
}

func apply(t *testing.T, s icebreaker.State, actions ...icebreaker.Action) icebreaker.State {
	t.Helper()

	for _, a := range actions {
		var err error
		s, err = icebreaker.Apply(s, a)
		require.NoError(t, err, "%T", a)
	}

	return s
}

func TestLoadedSyncsPhases(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{2: p.Others[0]}

	s := loadedState(t, p)

	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
	assert.Equal(t, icebreaker.PhaseAnswered, s.Phase(2))
	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(3))
}

func TestSelectIsExclusive(t *testing.T) {
	p := icebreakertest.NewParty()
	s := apply(t, loadedState(t, p),
		icebreaker.Select{Question: 1},
		icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
		icebreaker.Select{Question: 2},
	)

	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
	assert.Equal(t, icebreaker.PhaseSelecting, s.Phase(2))

	q, ok := s.Selecting()
	require.True(t, ok)
	assert.Equal(t, 2, q)
}

func TestSelectRejected(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}
	s := loadedState(t, p)

	tests := []struct {
		name   string
		state  icebreaker.State
		action icebreaker.Action
		want   error
	}{
		{"unknown question", s, icebreaker.Select{Question: 9}, icebreaker.ErrUnknownQuestion},
		{"answered question", s, icebreaker.Select{Question: 1}, icebreaker.ErrAnswered},
		{"while editing", apply(t, s, icebreaker.Edit{Question: 1}), icebreaker.Select{Question: 2}, icebreaker.ErrEditInProgress},
		{"without card", icebreaker.NewState(p.Self), icebreaker.Select{Question: 1}, icebreaker.ErrNoCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := icebreaker.Apply(tt.state, tt.action)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.state, got)
		})
	}
}

func TestSelectWithNobodyLeft(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Others = p.Others[:1]

	s := apply(t, loadedState(t, p),
		icebreaker.Select{Question: 1},
		icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
		icebreaker.BeginSubmit{Question: 1},
	)

	next := p.Card
	next.Answers = map[int]icebreaker.User{1: p.Others[0]}
	s = apply(t, s, icebreaker.Settle{Question: 1, Card: &next})

	_, err := icebreaker.Apply(s, icebreaker.Select{Question: 2})
	assert.ErrorIs(t, err, icebreaker.ErrNoneAvailable)
}

func TestChooseOnlyOffersAvailable(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}
	s := apply(t, loadedState(t, p), icebreaker.Select{Question: 2})

	_, err := icebreaker.Apply(s, icebreaker.Choose{Question: 2, ParticipantID: p.Others[0].ID})
	assert.ErrorIs(t, err, icebreaker.ErrNotAvailable)

	_, err = icebreaker.Apply(s, icebreaker.Choose{Question: 2, ParticipantID: p.Self.ID})
	assert.ErrorIs(t, err, icebreaker.ErrNotAvailable)

	_, err = icebreaker.Apply(s, icebreaker.Choose{Question: 3, ParticipantID: p.Others[1].ID})
	assert.ErrorIs(t, err, icebreaker.ErrWrongPhase)

	s = apply(t, s, icebreaker.Edit{Question: 1}, icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID})
	assert.Equal(t, icebreaker.PhaseEditing, s.Phase(1))
}

func TestEditClearsPendingSelection(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}

	s := apply(t, loadedState(t, p),
		icebreaker.Select{Question: 2},
		icebreaker.Choose{Question: 2, ParticipantID: p.Others[1].ID},
		icebreaker.Edit{Question: 1},
	)

	assert.Equal(t, icebreaker.PhaseEditing, s.Phase(1))
	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(2))
	assert.Empty(t, s.Questions[2].Selection)
	assert.Empty(t, s.Questions[1].Selection)

	_, ok := s.Selecting()
	assert.False(t, ok)
}

func TestOnlyOneQuestionIsEdited(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0], 2: p.Others[1]}

	s := apply(t, loadedState(t, p), icebreaker.Edit{Question: 1}, icebreaker.Edit{Question: 2})

	assert.Equal(t, icebreaker.PhaseAnswered, s.Phase(1))
	assert.Equal(t, icebreaker.PhaseEditing, s.Phase(2))
}

func TestCancel(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}
	s := loadedState(t, p)

	s = apply(t, s,
		icebreaker.Select{Question: 2},
		icebreaker.Choose{Question: 2, ParticipantID: p.Others[1].ID},
		icebreaker.Cancel{Question: 2},
	)
	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(2))
	assert.Empty(t, s.Questions[2].Selection)

	s = apply(t, s,
		icebreaker.Edit{Question: 1},
		icebreaker.Choose{Question: 1, ParticipantID: p.Others[2].ID},
		icebreaker.Cancel{Question: 1},
	)
	assert.Equal(t, icebreaker.PhaseAnswered, s.Phase(1))
	assert.Empty(t, s.Questions[1].Selection)
}

func TestBeginSubmit(t *testing.T) {
	p := icebreakertest.NewParty()
	s := apply(t, loadedState(t, p), icebreaker.Select{Question: 1})

	_, err := icebreaker.Apply(s, icebreaker.BeginSubmit{Question: 1})
	assert.ErrorIs(t, err, icebreaker.ErrNoSelection)

	s = apply(t, s,
		icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
		icebreaker.BeginSubmit{Question: 1},
	)
	assert.True(t, s.Submitting)
	assert.Equal(t, icebreaker.PhaseSubmitting, s.Phase(1))

	// one save at a time across the whole card
	s = apply(t, s,
		icebreaker.Select{Question: 2},
		icebreaker.Choose{Question: 2, ParticipantID: p.Others[1].ID},
	)
	_, err = icebreaker.Apply(s, icebreaker.BeginSubmit{Question: 2})
	assert.ErrorIs(t, err, icebreaker.ErrBusy)
}

func TestSettle(t *testing.T) {
	p := icebreakertest.NewParty()
	x := p.Others[0]

	started := apply(t, loadedState(t, p),
		icebreaker.Select{Question: 1},
		icebreaker.Choose{Question: 1, ParticipantID: x.ID},
		icebreaker.BeginSubmit{Question: 1},
	)

	t.Run("success", func(t *testing.T) {
		next := p.Card
		next.Answers = map[int]icebreaker.User{1: x}

		s := apply(t, started, icebreaker.Settle{Question: 1, Card: &next})

		assert.False(t, s.Submitting)
		assert.Empty(t, s.Error)
		assert.Equal(t, icebreaker.PhaseAnswered, s.Phase(1))
		assert.NotContains(t, ids(s.Available()), x.ID)
	})

	t.Run("failure", func(t *testing.T) {
		s := apply(t, started, icebreaker.Settle{
			Question: 1,
			Err:      &icebreaker.APIError{Status: 409, Message: "Already chosen"},
			Fallback: "Failed to submit answer",
		})

		assert.False(t, s.Submitting)
		assert.Equal(t, "Already chosen", s.Error)
		assert.Equal(t, icebreaker.PhaseSelecting, s.Phase(1))
		assert.Equal(t, x.ID, s.Questions[1].Selection)
	})

	t.Run("failure without server message", func(t *testing.T) {
		s := apply(t, started, icebreaker.Settle{
			Question: 1,
			Err:      errors.New("connection reset"),
			Fallback: "Failed to submit answer",
		})

		assert.Equal(t, "Failed to submit answer", s.Error)
	})
}

func TestFailedSaveDoesNotReopenOverAnotherPicker(t *testing.T) {
	p := icebreakertest.NewParty()
	failed := icebreaker.Settle{
		Question: 1,
		Err:      &icebreaker.APIError{Status: 409, Message: "Already chosen"},
		Fallback: "Failed to submit answer",
	}

	t.Run("select during save", func(t *testing.T) {
		s := apply(t, loadedState(t, p),
			icebreaker.Select{Question: 1},
			icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
			icebreaker.BeginSubmit{Question: 1},
			icebreaker.Select{Question: 2},
			failed,
		)

		assert.Equal(t, "Already chosen", s.Error)
		assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
		assert.Empty(t, s.Questions[1].Selection)
		assert.Equal(t, icebreaker.PhaseSelecting, s.Phase(2))
	})

	t.Run("edit during save", func(t *testing.T) {
		answered := p
		answered.Card.Answers = map[int]icebreaker.User{3: p.Others[1]}

		s := apply(t, loadedState(t, answered),
			icebreaker.Select{Question: 1},
			icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
			icebreaker.BeginSubmit{Question: 1},
			icebreaker.Edit{Question: 3},
			failed,
		)

		assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
		assert.Equal(t, icebreaker.PhaseEditing, s.Phase(3))

		_, err := icebreaker.Apply(s, icebreaker.Select{Question: 2})
		assert.ErrorIs(t, err, icebreaker.ErrEditInProgress)
	})

	t.Run("edit save failing during another edit", func(t *testing.T) {
		answered := p
		answered.Card.Answers = map[int]icebreaker.User{1: p.Others[0], 3: p.Others[1]}

		s := apply(t, loadedState(t, answered),
			icebreaker.Edit{Question: 1},
			icebreaker.Choose{Question: 1, ParticipantID: p.Others[2].ID},
			icebreaker.BeginUpdate{Question: 1},
			icebreaker.Edit{Question: 3},
			failed,
		)

		assert.Equal(t, icebreaker.PhaseAnswered, s.Phase(1))
		assert.Equal(t, icebreaker.PhaseEditing, s.Phase(3))
	})

	t.Run("nothing opened during save", func(t *testing.T) {
		s := apply(t, loadedState(t, p),
			icebreaker.Select{Question: 1},
			icebreaker.Choose{Question: 1, ParticipantID: p.Others[0].ID},
			icebreaker.BeginSubmit{Question: 1},
			failed,
		)

		assert.Equal(t, icebreaker.PhaseSelecting, s.Phase(1))
		assert.Equal(t, p.Others[0].ID, s.Questions[1].Selection)
	})
}

func TestUpdateWithEmptySelectionRemovesAnswer(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}

	s := apply(t, loadedState(t, p),
		icebreaker.Edit{Question: 1},
		icebreaker.BeginUpdate{Question: 1},
	)
	assert.True(t, s.Submitting)
	assert.Empty(t, s.Questions[1].Selection)

	next := p.Card
	next.Answers = map[int]icebreaker.User{}
	s = apply(t, s, icebreaker.Settle{Question: 1, Card: &next})

	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
	_, answered := s.Card.AnswerFor(1)
	assert.False(t, answered)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	p := icebreakertest.NewParty()
	s := loadedState(t, p)

	_ = apply(t, s, icebreaker.Select{Question: 1})

	assert.Equal(t, icebreaker.PhaseIdle, s.Phase(1))
}

func TestViews(t *testing.T) {
	p := icebreakertest.NewParty()
	p.Card.Answers = map[int]icebreaker.User{1: p.Others[0]}

	s := apply(t, loadedState(t, p), icebreaker.Edit{Question: 1})
	views := s.Views()
	require.Len(t, views, 3)

	assert.Equal(t, icebreaker.PhaseEditing, views[0].Phase)
	require.NotNil(t, views[0].Answer)
	assert.Equal(t, p.Others[0].ID, views[0].Answer.ID)
	assert.NotEmpty(t, views[0].Options)

	assert.False(t, views[1].CanSelect)
	assert.Equal(t, "Finish editing first", views[1].Hint)
}
