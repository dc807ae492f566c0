/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package icebreakertest provides an in-memory game backend served over
// HTTP, for tests of code that talks to the icebreaker API.
package icebreakertest

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/icebreaker/icebreaker"
)

// Route names one backend endpoint, for counting calls and injecting
// failures.
type Route string

const (
	RouteGameState    Route = "GET /api/admin/game-state"
	RouteCard         Route = "GET /api/icebreaker/card"
	RouteParticipants Route = "GET /api/icebreaker/answers"
	RouteCreate       Route = "POST /api/icebreaker/answers"
	RouteUpdate       Route = "PUT /api/icebreaker/answers"
	RouteDelete       Route = "DELETE /api/icebreaker/answers"
)

type failure struct {
	status  int
	message string
}

// Backend is a fake game server. Answers follow the same rules as the real
// one: a participant is named at most once per card and never for oneself.
type Backend struct {
	mu       sync.Mutex
	enabled  bool
	roster   []icebreaker.User
	cards    map[string]*icebreaker.Card
	calls    map[Route]int
	failures map[Route][]failure
	holds    map[Route]chan struct{}

	server *httptest.Server
}

// New starts a backend that is stopped when the test ends. The game starts
// out enabled.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		enabled:  true,
		cards:    make(map[string]*icebreaker.Card),
		calls:    make(map[Route]int),
		failures: make(map[Route][]failure),
		holds:    make(map[Route]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(string(RouteGameState), b.serveGameState)
	mux.HandleFunc(string(RouteCard), b.serveCard)
	mux.HandleFunc(string(RouteParticipants), b.serveParticipants)
	mux.HandleFunc(string(RouteCreate), b.serveCreate)
	mux.HandleFunc(string(RouteUpdate), b.serveUpdate)
	mux.HandleFunc(string(RouteDelete), b.serveDelete)

	b.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		b.releaseAll()
		b.server.Close()
	})

	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

// Client returns an icebreaker client pointed at the backend.
func (b *Backend) Client(t testing.TB) *icebreaker.Client {
	t.Helper()

	c, err := icebreaker.NewClient(b.server.URL, b.server.Client(), 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return c
}

func (b *Backend) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enabled = enabled
}

// SetRoster replaces the participant roster.
func (b *Backend) SetRoster(users ...icebreaker.User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roster = append([]icebreaker.User(nil), users...)
}

// SetCard gives userID a card. Its answers are copied.
func (b *Backend) SetCard(userID string, card icebreaker.Card) {
	b.mu.Lock()
	defer b.mu.Unlock()

	card.Answers = maps.Clone(card.Answers)
	if card.Answers == nil {
		card.Answers = map[int]icebreaker.User{}
	}
	b.cards[userID] = &card
}

// Answers returns a copy of the answers stored for userID.
func (b *Backend) Answers(userID string) map[int]icebreaker.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.cards[userID]
	if !ok {
		return nil
	}

	return maps.Clone(c.Answers)
}

// Calls reports how many requests reached a route.
func (b *Backend) Calls(r Route) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.calls[r]
}

// Fail makes the next call to r answer with status. A non-empty message is
// sent as the body's "error" field.
func (b *Backend) Fail(r Route, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[r] = append(b.failures[r], failure{status: status, message: message})
}

// Hold makes calls to r wait until the returned func is called. Calls are
// counted before they wait.
func (b *Backend) Hold(r Route) (release func()) {
	ch := make(chan struct{})

	b.mu.Lock()
	b.holds[r] = ch
	b.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.holds[r] == ch {
				delete(b.holds, r)
			}
			b.mu.Unlock()

			close(ch)
		})
	}
}

func (b *Backend) releaseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for r, ch := range b.holds {
		delete(b.holds, r)
		close(ch)
	}
}

// enter counts a call, waits out any hold and reports an injected failure.
func (b *Backend) enter(w http.ResponseWriter, r Route) bool {
	b.mu.Lock()
	b.calls[r]++
	hold := b.holds[r]
	b.mu.Unlock()

	if hold != nil {
		<-hold
	}

	b.mu.Lock()
	queue := b.failures[r]
	if len(queue) == 0 {
		b.mu.Unlock()

		return true
	}
	f := queue[0]
	b.failures[r] = queue[1:]
	b.mu.Unlock()

	if f.message != "" {
		writeError(w, f.status, f.message)
	} else {
		w.WriteHeader(f.status)
	}

	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (b *Backend) serveGameState(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteGameState) {
		return
	}

	b.mu.Lock()
	enabled := b.enabled
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, icebreaker.GameState{IsIcebreakerEnabled: enabled})
}

func (b *Backend) serveCard(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteCard) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.cards[r.URL.Query().Get("userId")]
	if !ok {
		writeError(w, http.StatusNotFound, "Card not found")

		return
	}

	out := *c
	out.Answers = maps.Clone(c.Answers)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) serveParticipants(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteParticipants) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	writeJSON(w, http.StatusOK, b.roster)
}

type mutation struct {
	CardID         string `json:"cardId"`
	QuestionNumber int    `json:"questionNumber"`
	GiverID        string `json:"giverId"`
	ReceiverID     string `json:"receiverId"`
	NewReceiverID  string `json:"newReceiverId"`
}

// card looks up the giver's card for a mutation. Callers hold b.mu.
func (b *Backend) card(w http.ResponseWriter, m mutation) (*icebreaker.Card, bool) {
	c, ok := b.cards[m.GiverID]
	if !ok || c.DBID != m.CardID {
		writeError(w, http.StatusNotFound, "Card not found")

		return nil, false
	}
	if _, ok := c.Question(m.QuestionNumber); !ok {
		writeError(w, http.StatusBadRequest, "Invalid question")

		return nil, false
	}

	return c, true
}

// receiver checks that id may be named for question. Callers hold b.mu.
func (b *Backend) receiver(w http.ResponseWriter, c *icebreaker.Card, giver, id string, question int) (icebreaker.User, bool) {
	if id == giver {
		writeError(w, http.StatusBadRequest, "You cannot choose yourself")

		return icebreaker.User{}, false
	}

	for n, u := range c.Answers {
		if n != question && u.ID == id {
			writeError(w, http.StatusConflict, "This person has already been chosen")

			return icebreaker.User{}, false
		}
	}

	for _, u := range b.roster {
		if u.ID == id {
			return u, true
		}
	}

	writeError(w, http.StatusNotFound, "Participant not found")

	return icebreaker.User{}, false
}

func decode(w http.ResponseWriter, r *http.Request) (mutation, bool) {
	var m mutation
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")

		return mutation{}, false
	}

	return m, true
}

func (b *Backend) serveCreate(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteCreate) {
		return
	}

	m, ok := decode(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.card(w, m)
	if !ok {
		return
	}
	if _, answered := c.Answers[m.QuestionNumber]; answered {
		writeError(w, http.StatusConflict, "Question already answered")

		return
	}

	u, ok := b.receiver(w, c, m.GiverID, m.ReceiverID, m.QuestionNumber)
	if !ok {
		return
	}

	c.Answers[m.QuestionNumber] = u
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (b *Backend) serveUpdate(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteUpdate) {
		return
	}

	m, ok := decode(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.card(w, m)
	if !ok {
		return
	}
	if _, answered := c.Answers[m.QuestionNumber]; !answered {
		writeError(w, http.StatusNotFound, "Answer not found")

		return
	}

	u, ok := b.receiver(w, c, m.GiverID, m.NewReceiverID, m.QuestionNumber)
	if !ok {
		return
	}

	c.Answers[m.QuestionNumber] = u
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (b *Backend) serveDelete(w http.ResponseWriter, r *http.Request) {
	if !b.enter(w, RouteDelete) {
		return
	}

	m, ok := decode(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.card(w, m)
	if !ok {
		return
	}
	if _, answered := c.Answers[m.QuestionNumber]; !answered {
		writeError(w, http.StatusNotFound, "Answer not found")

		return
	}

	delete(c.Answers, m.QuestionNumber)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
