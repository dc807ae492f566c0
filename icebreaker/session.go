/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Session is one player's open card page. It checks whether the game has
// started, loads the card and roster, and saves answers, re-fetching the
// card after every save. Only one save runs at a time per session.
//
// Network calls are made without holding the session lock, so the page can
// still be drawn while a save is in flight.
type Session struct {
	id      string
	self    User
	backend Backend
	log     logrus.FieldLogger

	mu         sync.Mutex
	state      State
	gate       Gate
	loaded     bool
	mounted    bool
	generation uint64
	loadedGen  uint64
	catchUp    bool
	version    uint64
	lastActive time.Time
	subs       map[chan uint64]struct{}
	closed     bool
}

func NewSession(id string, self User, backend Backend, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Session{
		id:      id,
		self:    self,
		backend: backend,
		log: log.WithFields(logrus.Fields{
			"session": id,
			"user":    self.ID,
		}),
		state:      NewState(self),
		lastActive: time.Now(),
		subs:       make(map[chan uint64]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Self() User {
	return s.self
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

// Mount opens the page the first time it is called and does nothing after
// that.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.lastActive = time.Now()
		s.mu.Unlock()

		return nil
	}
	s.mu.Unlock()

	return s.Reload(ctx)
}

// Reload opens the page from scratch: state is reset, any save still in
// flight is forgotten, then the game status is checked and the data
// fetched again.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = NewState(s.self)
	s.gate = GatePending
	s.loaded = false
	s.mounted = true
	s.changedLocked()
	s.mu.Unlock()

	gs, err := s.backend.GameState(ctx)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()

		return nil
	}

	switch {
	case err != nil:
		s.gate = GateUnknown
		s.state, _ = Apply(s.state, Fail{Err: withMessage(msgGameStatus, err)})
		s.log.WithError(err).Warn("game status check failed")
	case gs.IsIcebreakerEnabled:
		s.gate = GateEnabled
	default:
		s.gate = GateDisabled
	}
	gate := s.gate
	s.changedLocked()
	s.mu.Unlock()

	if gate == GateDisabled {
		return nil
	}

	if loadErr := s.load(ctx, gen); loadErr != nil {
		return loadErr
	}

	return err
}

// load fetches card and roster side by side. Whatever arrived is kept even
// when the other request failed.
func (s *Session) load(ctx context.Context, gen uint64) error {
	var (
		card         *Card
		participants []User
		g            errgroup.Group
	)

	g.Go(func() error {
		c, err := s.backend.Card(ctx, s.self.ID)
		if err != nil {
			return fetchError(msgFetchCard, err)
		}
		card = c

		return nil
	})

	g.Go(func() error {
		p, err := s.backend.Participants(ctx)
		if err != nil {
			return fetchError(msgFetchRoster, err)
		}
		participants = p

		return nil
	})

	err := g.Wait()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()

		return nil
	}

	s.state, _ = Apply(s.state, Loaded{
		Card:         card,
		Participants: participants,
		Err:          err,
	})
	s.loaded = s.state.Card != nil
	s.loadedGen = gen
	pending := s.catchUp
	s.catchUp = false
	s.changedLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Warn("loading game data failed")
	}

	if pending {
		s.refreshCard(ctx)
	}

	return err
}

// fetchError names the failed request when the backend answered; transport
// failures keep the generic loading message.
func fetchError(msg string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return withMessage(msg, err)
	}

	return err
}

// apply runs a UI transition and shows its error, if any, to the player.
func (s *Session) apply(a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	next, err := Apply(s.state, a)
	if err != nil {
		s.state.Error = Message(err, err.Error())
		s.changedLocked()

		return err
	}

	s.state = next
	s.changedLocked()

	return nil
}

// Select opens the new answer picker on a question.
func (s *Session) Select(question int) error {
	return s.apply(Select{Question: question})
}

// Edit opens the edit picker on an answered question.
func (s *Session) Edit(question int) error {
	return s.apply(Edit{Question: question})
}

// Cancel closes the picker of a question.
func (s *Session) Cancel(question int) error {
	return s.apply(Cancel{Question: question})
}

// Choose sets the pick in the open picker of a question.
func (s *Session) Choose(question int, participantID string) error {
	return s.apply(Choose{Question: question, ParticipantID: participantID})
}

// begin picks a participant and starts a save. It returns what the save
// needs to talk to the backend.
func (s *Session) begin(question int, receiver string, start Action) (gen uint64, cardID, selection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	next, err := Apply(s.state, Choose{Question: question, ParticipantID: receiver})
	if err == nil {
		next, err = Apply(next, start)
	}

	switch {
	case errors.Is(err, ErrNoSelection):
		s.state = next
		s.changedLocked()

		return 0, "", "", err
	case err != nil:
		s.state.Error = Message(err, err.Error())
		s.changedLocked()

		return 0, "", "", err
	}

	s.state = next
	s.changedLocked()

	return s.generation, s.state.Card.DBID, receiver, nil
}

// settle records the outcome of a save started at generation gen. A save
// that succeeded behind a reload is not applied; the reloaded card may
// predate it, so it is fetched once more.
func (s *Session) settle(ctx context.Context, gen uint64, question int, card *Card, err error, fallback string) {
	s.mu.Lock()

	if gen != s.generation {
		stale := err == nil
		if stale && s.loadedGen != s.generation {
			// the reload's own load fetches again once it lands
			s.catchUp = true
			stale = false
		}
		s.mu.Unlock()

		if stale {
			s.refreshCard(ctx)
		}

		return
	}
	defer s.mu.Unlock()

	s.state, _ = Apply(s.state, Settle{
		Question: question,
		Card:     card,
		Err:      err,
		Fallback: fallback,
	})
	s.changedLocked()
}

// refreshCard fetches the card and applies it if no reload started since.
func (s *Session) refreshCard(ctx context.Context) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	card, err := s.backend.Card(ctx, s.self.ID)
	if err != nil {
		s.log.WithError(err).Warn("refreshing card after save failed")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}

	s.state, _ = Apply(s.state, Loaded{Card: card})
	s.loaded = true
	s.changedLocked()
}

// refetch loads the card after a successful save.
func (s *Session) refetch(ctx context.Context) (*Card, error) {
	card, err := s.backend.Card(ctx, s.self.ID)
	if err != nil {
		return nil, withMessage(msgFetchUpdated, err)
	}

	return card, nil
}

// Submit saves receiver as the answer to an unanswered question. An empty
// receiver returns ErrNoSelection without calling the backend.
func (s *Session) Submit(ctx context.Context, question int, receiver string) error {
	gen, cardID, receiver, err := s.begin(question, receiver, BeginSubmit{Question: question})
	if err != nil {
		return err
	}

	var card *Card
	err = s.backend.CreateAnswer(ctx, CreateAnswerRequest{
		CardID:         cardID,
		QuestionNumber: question,
		GiverID:        s.self.ID,
		ReceiverID:     receiver,
	})
	if err != nil {
		err = withMessage(msgSubmit, err)
	} else {
		card, err = s.refetch(ctx)
	}

	s.settle(ctx, gen, question, card, err, msgSubmit)

	log := s.log.WithFields(logrus.Fields{
		"question": question,
		"receiver": receiver,
	})
	if err != nil {
		log.WithError(err).Warn("saving answer failed")

		return err
	}
	log.Debug("answer saved")

	return nil
}

// Update replaces the answer to a question. An empty receiver removes the
// answer instead.
func (s *Session) Update(ctx context.Context, question int, receiver string) error {
	gen, cardID, receiver, err := s.begin(question, receiver, BeginUpdate{Question: question})
	if err != nil {
		return err
	}

	var card *Card
	if receiver == "" {
		card, err = s.remove(ctx, cardID, question)
	} else {
		err = s.backend.UpdateAnswer(ctx, UpdateAnswerRequest{
			CardID:         cardID,
			QuestionNumber: question,
			GiverID:        s.self.ID,
			NewReceiverID:  receiver,
		})
		if err != nil {
			err = withMessage(msgUpdate, err)
		} else {
			card, err = s.refetch(ctx)
		}
	}

	s.settle(ctx, gen, question, card, err, msgUpdate)

	log := s.log.WithFields(logrus.Fields{
		"question": question,
		"receiver": receiver,
	})
	if err != nil {
		log.WithError(err).Warn("updating answer failed")

		return err
	}
	log.Debug("answer updated")

	return nil
}

// Delete removes the answer to a question. The question has to be open for
// editing, same as Update.
func (s *Session) Delete(ctx context.Context, question int) error {
	return s.Update(ctx, question, "")
}

// remove is the delete path of Update; its errors are reported by Update.
func (s *Session) remove(ctx context.Context, cardID string, question int) (*Card, error) {
	err := s.backend.DeleteAnswer(ctx, DeleteAnswerRequest{
		CardID:         cardID,
		QuestionNumber: question,
		GiverID:        s.self.ID,
	})
	if err != nil {
		return nil, withMessage(msgDelete, err)
	}

	return s.refetch(ctx)
}

// Snapshot copies the session for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:    s.version,
		Self:       s.self,
		Gate:       s.gate,
		Loaded:     s.loaded,
		Questions:  s.state.Views(),
		Submitting: s.state.Submitting,
		Error:      s.state.Error,
	}

	if c := s.state.Card; c != nil {
		snap.Title = c.Title
		snap.Subtitle = c.Subtitle
		snap.Answered = c.AnsweredCount()
		snap.Total = len(c.Questions)
	}

	return snap
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

// Subscribe returns a channel receiving the session version after every
// change. Only the latest version is kept for slow readers. The channel is
// closed by Close or by calling the returned func.
func (s *Session) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)

		return ch, func() {}
	}

	s.subs[ch] = struct{}{}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Close ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *Session) changedLocked() {
	s.version++

	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- s.version:
		default:
		}
	}
}
