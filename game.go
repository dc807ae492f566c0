// Icebreaker
//
// Every player gets a card of questions ("find someone who has a pet") and
// has to name a different participant for each one. The game backend keeps
// cards and answers; this server draws the card page and turns its buttons
// into backend calls.
//
// Features:
// - Players are identified by the identity cookie left by sign-in; without
//   it they are sent to --signin-url
// - Every browser gets its own play session via the session cookie; its
//   tabs share it and are all refreshed after each change
// - Nothing is fetched until the organizer has started the game
// - A participant can be named for one question only; pickers never offer
//   anyone already used elsewhere on the card
// - One save at a time per play session; the card is re-fetched after each
// - Open pages refresh over a websocket when their session changes
// - Idle play sessions are reaped after --session-timeout
// - QR code of the page for the organizer to put on screen

package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/icebreaker/icebreaker"
)

//go:embed templates/icebreaker.html
var pageTemplateText string

var pageTemplate = template.Must(template.New("icebreaker").Parse(pageTemplateText))

const (
	viewNotStarted = "not-started"
	viewLoading    = "loading"
	viewCard       = "card"
)

type pageData struct {
	Prefix  string
	Favicon template.HTML
	View    string
	Snap    icebreaker.Snapshot
}

// pageView picks what the page shows. A stopped game hides everything
// else; an unknown game status still shows the card once it has loaded.
func pageView(snap icebreaker.Snapshot) string {
	switch {
	case snap.Gate == icebreaker.GateDisabled:
		return viewNotStarted
	case !snap.Loaded:
		return viewLoading
	default:
		return viewCard
	}
}

// playSession resolves the player and their play session, sending players
// without an identity to sign in. ok is false when the response is done.
func playSession(cfg *Config, mgr *Manager, w http.ResponseWriter, r *http.Request) (*icebreaker.Session, bool) {
	self, err := readIdentity(cfg, r)
	if err != nil {
		logf(cfg, "SERVE: No identity from %s, sending to %s (%v)", realIP(r), cfg.signinURL, err)

		http.Redirect(w, r, cfg.signinURL, http.StatusSeeOther)

		return nil, false
	}

	s := mgr.session(getOrSetSessionID(cfg, w, r), self)

	if err := s.Mount(r.Context()); err != nil {
		requestLog(cfg, r).WithError(err).Debug("GAMES: Page opened with errors")
	}

	return s, true
}

func serveCardPage(cfg *Config, mgr *Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		s, ok := playSession(cfg, mgr, w, r)
		if !ok {
			return
		}

		snap := s.Snapshot()

		var buf bytes.Buffer
		err := pageTemplate.Execute(&buf, pageData{
			Prefix:  cfg.prefix,
			Favicon: faviconLinks(cfg),
			View:    pageView(snap),
			Snap:    snap,
		})
		if err != nil {
			requestLog(cfg, r).WithError(err).Error("SERVE: Rendering card page failed")

			serveError(cfg, w, http.StatusInternalServerError, "Server Error", "An error has occurred. Please try again.")

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' https: data:")

		written, err := w.Write(buf.Bytes())
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Card page (%s, %s) for %q to %s in %s",
			pageView(snap),
			humanReadableSize(written),
			snap.Self.ID,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// action is one button on the card page.
type action func(ctx context.Context, s *icebreaker.Session, question int, r *http.Request) error

// serveAction runs an action and sends the browser back to the card page.
// Failures are shown on the page through the session's error line.
func serveAction(cfg *Config, mgr *Manager, name string, act action) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		question, err := strconv.Atoi(p.ByName("number"))
		if err != nil {
			serveError(cfg, w, http.StatusBadRequest, "Bad Request", "Unknown question.")

			return
		}

		if err := r.ParseForm(); err != nil {
			serveError(cfg, w, http.StatusBadRequest, "Bad Request", "Malformed form.")

			return
		}

		s, ok := playSession(cfg, mgr, w, r)
		if !ok {
			return
		}

		// a save outlives the request so that leaving the page does not
		// abandon it halfway; the backend timeout still bounds it
		err = act(context.WithoutCancel(r.Context()), s, question, r)

		log := requestLog(cfg, r).WithField("question", question)
		switch {
		case err == nil:
			log.Debugf("GAMES: %s", name)
		case errors.Is(err, icebreaker.ErrNoSelection):
			log.Debugf("GAMES: %s without a selection ignored", name)
		default:
			log.WithError(err).Debugf("GAMES: %s failed", name)
		}

		http.Redirect(w, r, cfg.prefix+"/icebreaker", http.StatusSeeOther)
	}
}

func serveReload(cfg *Config, mgr *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s, ok := playSession(cfg, mgr, w, r)
		if !ok {
			return
		}

		if err := s.Reload(r.Context()); err != nil {
			requestLog(cfg, r).WithError(err).Debug("GAMES: Reload finished with errors")
		}

		http.Redirect(w, r, cfg.prefix+"/icebreaker", http.StatusSeeOther)
	}
}

func serveState(cfg *Config, mgr *Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, err := readIdentity(cfg, r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not signed in"})

			return
		}

		s, ok := playSession(cfg, mgr, w, r)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(s.Snapshot()); err != nil {
			errs <- err
		}
	}
}

func selectQuestion(_ context.Context, s *icebreaker.Session, question int, _ *http.Request) error {
	return s.Select(question)
}

func cancelQuestion(_ context.Context, s *icebreaker.Session, question int, _ *http.Request) error {
	return s.Cancel(question)
}

func editQuestion(_ context.Context, s *icebreaker.Session, question int, _ *http.Request) error {
	return s.Edit(question)
}

func submitAnswer(ctx context.Context, s *icebreaker.Session, question int, r *http.Request) error {
	return s.Submit(ctx, question, r.PostFormValue("receiver"))
}

func updateAnswer(ctx context.Context, s *icebreaker.Session, question int, r *http.Request) error {
	return s.Update(ctx, question, r.PostFormValue("receiver"))
}

func deleteAnswer(ctx context.Context, s *icebreaker.Session, question int, _ *http.Request) error {
	return s.Delete(ctx, question)
}

// registerIcebreaker sets up routes so that:
//   - $path                               → card page
//   - $path/reload                        → start the page over
//   - $path/questions/:number/{action}    → card buttons
//   - $path/state                         → JSON snapshot of the page
//   - $path/ws                            → change notifications
//   - $path/qr                            → PNG QR code for the page URL
func registerIcebreaker(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, mgr *Manager, errs chan<- error) {
	go mgr.reaperLoop(ctx)

	base := cfg.prefix + path

	mux.GET(base, serveCardPage(cfg, mgr, errs))
	mux.POST(base+"/reload", serveReload(cfg, mgr))

	mux.POST(base+"/questions/:number/select", serveAction(cfg, mgr, "select", selectQuestion))
	mux.POST(base+"/questions/:number/cancel", serveAction(cfg, mgr, "cancel", cancelQuestion))
	mux.POST(base+"/questions/:number/edit", serveAction(cfg, mgr, "edit", editQuestion))
	mux.POST(base+"/questions/:number/submit", serveAction(cfg, mgr, "submit", submitAnswer))
	mux.POST(base+"/questions/:number/update", serveAction(cfg, mgr, "update", updateAnswer))
	mux.POST(base+"/questions/:number/delete", serveAction(cfg, mgr, "delete", deleteAnswer))

	mux.GET(base+"/state", serveState(cfg, mgr, errs))
	mux.GET(base+"/ws", serveLive(cfg, mgr))
	mux.GET(base+"/qr", serveQR(cfg, path))
}
