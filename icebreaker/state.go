/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

import (
	"maps"
)

// Phase is where one question stands in the answer flow.
//
//	Idle -> Selecting -> Submitting -> Answered
//	Answered -> Editing -> Submitting -> Answered | Idle
//	Answered -> Editing -> Answered (cancel)
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseAnswered
	PhaseEditing
	PhaseSubmitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelecting:
		return "selecting"
	case PhaseAnswered:
		return "answered"
	case PhaseEditing:
		return "editing"
	case PhaseSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// QuestionState is the view state of a single question.
type QuestionState struct {
	Phase     Phase  `json:"phase"`
	Selection string `json:"selection,omitempty"`

	// phase to go back to when a submission fails
	resume Phase
}

// State is everything a player's page is drawn from. It is a value: Apply
// never modifies the State it is given.
type State struct {
	Self         User
	Card         *Card
	Participants []User
	Questions    map[int]QuestionState

	// Submitting is set while any answer is being saved and blocks every
	// other mutation on the card.
	Submitting bool
	Error      string
}

// closed keeps a save running but makes a failure close the picker instead
// of reopening it.
func (qs QuestionState) closed() QuestionState {
	qs.resume = PhaseIdle

	return qs
}

// NewState returns the state of a freshly opened page.
func NewState(self User) State {
	return State{
		Self:         self,
		Participants: []User{},
		Questions:    map[int]QuestionState{},
	}
}

// Action is a transition of the answer flow.
type Action interface {
	apply(s State) (State, error)
}

// Apply runs a against s. On error the returned State is s unchanged.
func Apply(s State, a Action) (State, error) {
	next := s.clone()

	next, err := a.apply(next)
	if err != nil {
		return s, err
	}

	return next, nil
}

func (s State) clone() State {
	s.Questions = maps.Clone(s.Questions)
	if s.Questions == nil {
		s.Questions = map[int]QuestionState{}
	}

	return s
}

// Available is AvailableParticipants for the state's card.
func (s State) Available() []User {
	return AvailableParticipants(s.Card, s.Participants, s.Self)
}

// EditAvailable is EditAvailableParticipants for the state's card.
func (s State) EditAvailable(question int) []User {
	return EditAvailableParticipants(s.Card, s.Participants, s.Self, question)
}

func (s State) phase(question int) Phase {
	if qs, ok := s.Questions[question]; ok {
		return qs.Phase
	}
	if _, ok := s.Card.AnswerFor(question); ok {
		return PhaseAnswered
	}

	return PhaseIdle
}

// Phase reports the phase of a question.
func (s State) Phase(question int) Phase {
	return s.phase(question)
}

// Selecting returns the question waiting for a new answer, if any.
func (s State) Selecting() (int, bool) {
	return s.find(PhaseSelecting)
}

// Editing returns the question being edited, if any.
func (s State) Editing() (int, bool) {
	return s.find(PhaseEditing)
}

func (s State) find(p Phase) (int, bool) {
	for n, qs := range s.Questions {
		if qs.Phase == p {
			return n, true
		}
	}

	return 0, false
}

func (s State) question(number int) error {
	if s.Card == nil {
		return ErrNoCard
	}
	if _, ok := s.Card.Question(number); !ok {
		return ErrUnknownQuestion
	}

	return nil
}

// sync lines the question phases up with the card: answered questions
// become Answered unless being edited, unanswered ones fall back to Idle.
func (s *State) sync() {
	if s.Card == nil {
		return
	}

	next := make(map[int]QuestionState, len(s.Card.Questions))
	for _, q := range s.Card.Questions {
		qs := s.Questions[q.Number]
		_, answered := s.Card.AnswerFor(q.Number)

		switch qs.Phase {
		case PhaseSubmitting:
		case PhaseEditing:
			if !answered {
				qs = QuestionState{Phase: PhaseIdle}
			}
		case PhaseSelecting:
			if answered {
				qs = QuestionState{Phase: PhaseAnswered}
			}
		default:
			if answered {
				qs = QuestionState{Phase: PhaseAnswered}
			} else {
				qs = QuestionState{Phase: PhaseIdle}
			}
		}

		next[q.Number] = qs
	}

	s.Questions = next
}

// Loaded replaces the card and roster after a fetch. Nil fields keep what
// was there; Err is shown to the player.
type Loaded struct {
	Card         *Card
	Participants []User
	Err          error
}

func (a Loaded) apply(s State) (State, error) {
	if a.Card != nil {
		s.Card = a.Card
	}
	if a.Participants != nil {
		s.Participants = a.Participants
	}
	if a.Err != nil {
		s.Error = Message(a.Err, msgLoad)
	}

	s.sync()

	return s, nil
}

// Select opens the new answer picker on a question.
type Select struct {
	Question int
}

func (a Select) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}
	if _, ok := s.Editing(); ok {
		return s, ErrEditInProgress
	}

	switch s.phase(a.Question) {
	case PhaseAnswered:
		return s, ErrAnswered
	case PhaseSubmitting:
		return s, ErrBusy
	}

	if len(s.Available()) == 0 {
		return s, ErrNoneAvailable
	}

	for n, qs := range s.Questions {
		switch qs.Phase {
		case PhaseSelecting:
			s.Questions[n] = QuestionState{Phase: PhaseIdle}
		case PhaseSubmitting:
			s.Questions[n] = qs.closed()
		}
	}

	s.Questions[a.Question] = QuestionState{Phase: PhaseSelecting}

	return s, nil
}

// Choose picks the participant in the open picker. An empty id clears the
// pick; while editing it means the answer will be removed.
type Choose struct {
	Question      int
	ParticipantID string
}

func (a Choose) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}

	qs := s.Questions[a.Question]

	var offered []User
	switch qs.Phase {
	case PhaseSelecting:
		offered = s.Available()
	case PhaseEditing:
		offered = s.EditAvailable(a.Question)
	default:
		return s, ErrWrongPhase
	}

	if a.ParticipantID != "" && !containsID(offered, a.ParticipantID) {
		return s, ErrNotAvailable
	}

	qs.Selection = a.ParticipantID
	s.Questions[a.Question] = qs

	return s, nil
}

// Cancel closes the picker of a question without saving.
type Cancel struct {
	Question int
}

func (a Cancel) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}

	switch s.phase(a.Question) {
	case PhaseSelecting:
		s.Questions[a.Question] = QuestionState{Phase: PhaseIdle}
	case PhaseEditing:
		s.Questions[a.Question] = QuestionState{Phase: PhaseAnswered}
	case PhaseSubmitting:
		return s, ErrBusy
	}

	return s, nil
}

// Edit opens the picker on an answered question. Only one question is
// open at a time, so any other picker is closed.
type Edit struct {
	Question int
}

func (a Edit) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}

	switch s.phase(a.Question) {
	case PhaseSubmitting:
		return s, ErrBusy
	case PhaseIdle, PhaseSelecting:
		if _, ok := s.Card.AnswerFor(a.Question); !ok {
			return s, ErrNotAnswered
		}
	}

	for n, qs := range s.Questions {
		if n == a.Question {
			continue
		}

		switch qs.Phase {
		case PhaseSelecting:
			s.Questions[n] = QuestionState{Phase: PhaseIdle}
		case PhaseEditing:
			s.Questions[n] = QuestionState{Phase: PhaseAnswered}
		case PhaseSubmitting:
			s.Questions[n] = qs.closed()
		}
	}

	s.Questions[a.Question] = QuestionState{Phase: PhaseEditing}

	return s, nil
}

// BeginSubmit starts saving a new answer. An empty pick is ErrNoSelection
// and must not reach the backend.
type BeginSubmit struct {
	Question int
}

func (a BeginSubmit) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}

	qs := s.Questions[a.Question]
	if qs.Phase != PhaseSelecting {
		return s, ErrWrongPhase
	}
	if qs.Selection == "" {
		return s, ErrNoSelection
	}
	if s.Submitting {
		return s, ErrBusy
	}

	available := s.Available()
	if len(available) == 0 {
		return s, ErrNoneAvailable
	}
	if !containsID(available, qs.Selection) {
		return s, ErrNotAvailable
	}

	s.Submitting = true
	s.Error = ""
	s.Questions[a.Question] = QuestionState{
		Phase:     PhaseSubmitting,
		Selection: qs.Selection,
		resume:    PhaseSelecting,
	}

	return s, nil
}

// BeginUpdate starts saving an edit. An empty pick removes the answer.
type BeginUpdate struct {
	Question int
}

func (a BeginUpdate) apply(s State) (State, error) {
	if err := s.question(a.Question); err != nil {
		return s, err
	}

	qs := s.Questions[a.Question]
	if qs.Phase != PhaseEditing {
		return s, ErrWrongPhase
	}
	if s.Submitting {
		return s, ErrBusy
	}
	if qs.Selection != "" && !containsID(s.EditAvailable(a.Question), qs.Selection) {
		return s, ErrNotAvailable
	}

	s.Submitting = true
	s.Error = ""
	s.Questions[a.Question] = QuestionState{
		Phase:     PhaseSubmitting,
		Selection: qs.Selection,
		resume:    PhaseEditing,
	}

	return s, nil
}

// Settle ends a save started by BeginSubmit or BeginUpdate. Card is the
// card fetched after a successful save. On Err the error is shown and the
// question goes back to its picker with the pick kept, unless another
// picker was opened meanwhile; then it is closed.
type Settle struct {
	Question int
	Card     *Card
	Err      error
	Fallback string
}

func (a Settle) apply(s State) (State, error) {
	s.Submitting = false

	qs, ok := s.Questions[a.Question]
	if !ok || qs.Phase != PhaseSubmitting {
		return s, nil
	}

	if a.Err != nil {
		s.Error = Message(a.Err, a.Fallback)

		_, selecting := s.Selecting()
		_, editing := s.Editing()
		switch {
		case selecting || editing || qs.resume == PhaseIdle:
			s.Questions[a.Question] = QuestionState{Phase: PhaseIdle}
		default:
			s.Questions[a.Question] = QuestionState{
				Phase:     qs.resume,
				Selection: qs.Selection,
			}
		}
		s.sync()

		return s, nil
	}

	s.Error = ""
	if a.Card != nil {
		s.Card = a.Card
	}
	s.Questions[a.Question] = QuestionState{Phase: PhaseIdle}
	s.sync()

	return s, nil
}

// Fail records an error that does not belong to a question.
type Fail struct {
	Err      error
	Fallback string
}

func (a Fail) apply(s State) (State, error) {
	s.Error = Message(a.Err, a.Fallback)

	return s, nil
}
