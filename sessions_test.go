/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/icebreaker/icebreaker"
	"github.com/Seednode/icebreaker/icebreaker/icebreakertest"
)

func TestGetOrSetSessionID(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000")

	rec := httptest.NewRecorder()
	id := getOrSetSessionID(cfg, rec, httptest.NewRequest(http.MethodGet, "/icebreaker", nil))

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, id, cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/icebreaker", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	assert.Equal(t, id, getOrSetSessionID(cfg, rec, req))
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/icebreaker", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-uuid"})
	assert.NotEqual(t, "not-a-uuid", getOrSetSessionID(cfg, httptest.NewRecorder(), req))
}

func TestReadIdentity(t *testing.T) {
	cfg := testConfig(t, "http://localhost:3000")
	p := icebreakertest.NewParty()

	req := httptest.NewRequest(http.MethodGet, "/icebreaker", nil)
	_, err := readIdentity(cfg, req)
	assert.ErrorIs(t, err, icebreaker.ErrNoIdentity)

	raw, err := icebreaker.EncodeIdentity(p.Self)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: cfg.identityCookie, Value: raw})

	self, err := readIdentity(cfg, req)
	require.NoError(t, err)
	assert.Equal(t, p.Self, self)

	req = httptest.NewRequest(http.MethodGet, "/icebreaker", nil)
	req.AddCookie(&http.Cookie{Name: cfg.identityCookie, Value: "%%%"})
	_, err = readIdentity(cfg, req)
	assert.ErrorIs(t, err, icebreaker.ErrNoIdentity)
}

func TestManagerSessions(t *testing.T) {
	b := icebreakertest.New(t)
	p := icebreakertest.NewParty()
	p.Install(b)

	mgr := newManager(testConfig(t, b.URL()), b.Client(t))

	first := mgr.session("a", p.Self)
	assert.Same(t, first, mgr.session("a", p.Self))
	assert.NotSame(t, first, mgr.session("b", p.Self))
	assert.Equal(t, 2, mgr.count())

	// a different player on the same tab gets a fresh page
	replaced := mgr.session("a", p.Others[0])
	assert.NotSame(t, first, replaced)
	assert.Equal(t, p.Others[0].ID, replaced.Self().ID)

	got, ok := mgr.lookup("a")
	require.True(t, ok)
	assert.Same(t, replaced, got)

	_, ok = mgr.lookup("missing")
	assert.False(t, ok)
}

func TestManagerReap(t *testing.T) {
	b := icebreakertest.New(t)
	p := icebreakertest.NewParty()

	mgr := newManager(testConfig(t, b.URL()), b.Client(t))

	s := mgr.session("a", p.Self)
	updates, _ := s.Subscribe()

	assert.Zero(t, mgr.reap(time.Now().Add(-time.Minute)))
	assert.Equal(t, 1, mgr.count())

	assert.Equal(t, 1, mgr.reap(time.Now().Add(time.Minute)))
	assert.Zero(t, mgr.count())

	// reaped sessions end their subscriptions
	select {
	case _, open := <-updates:
		for open {
			_, open = <-updates
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}
