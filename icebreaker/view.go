/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package icebreaker

// Gate is the outcome of checking whether the game has started.
type Gate int

const (
	GatePending Gate = iota
	GateEnabled
	GateDisabled
	GateUnknown
)

func (g Gate) String() string {
	switch g {
	case GatePending:
		return "pending"
	case GateEnabled:
		return "enabled"
	case GateDisabled:
		return "disabled"
	case GateUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

func (g Gate) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// QuestionView is one row of the card as the page draws it.
type QuestionView struct {
	Number    int      `json:"number"`
	Text      string   `json:"text"`
	Phase     Phase    `json:"phase"`
	Answer    *User    `json:"answer,omitempty"`
	Selection string   `json:"selection,omitempty"`
	Options   []Option `json:"options,omitempty"`

	// CanSelect is false when the picker may not be opened, with Hint
	// saying why.
	CanSelect bool   `json:"canSelect"`
	Hint      string `json:"hint,omitempty"`
}

// Snapshot is a read-only copy of a play session for rendering.
type Snapshot struct {
	Version    uint64         `json:"version"`
	Self       User           `json:"self"`
	Gate       Gate           `json:"gate"`
	Loaded     bool           `json:"loaded"`
	Title      string         `json:"title,omitempty"`
	Subtitle   string         `json:"subtitle,omitempty"`
	Answered   int            `json:"answered"`
	Total      int            `json:"total"`
	Questions  []QuestionView `json:"questions"`
	Submitting bool           `json:"submitting"`
	Error      string         `json:"error,omitempty"`
}

// Views lays out the card's questions in card order.
func (s State) Views() []QuestionView {
	if s.Card == nil {
		return []QuestionView{}
	}

	_, editing := s.Editing()
	available := s.Available()

	views := make([]QuestionView, 0, len(s.Card.Questions))
	for _, q := range s.Card.Questions {
		qs := s.Questions[q.Number]
		phase := s.phase(q.Number)

		v := QuestionView{
			Number:    q.Number,
			Text:      q.Text,
			Phase:     phase,
			Selection: qs.Selection,
		}

		if answer, ok := s.Card.AnswerFor(q.Number); ok {
			v.Answer = &answer
		}

		switch phase {
		case PhaseSelecting:
			v.Options = SelectOptions(s.Card, s.Participants, s.Self)
		case PhaseEditing:
			v.Options = EditOptions(s.Card, s.Participants, s.Self, q.Number)
		case PhaseIdle:
			switch {
			case editing:
				v.Hint = "Finish editing first"
			case len(available) == 0:
				v.Hint = "No people left"
			default:
				v.CanSelect = true
			}
		}

		views = append(views, v)
	}

	return views
}

func (v QuestionView) IsSelecting() bool {
	return v.Phase == PhaseSelecting
}

func (v QuestionView) IsEditing() bool {
	return v.Phase == PhaseEditing
}

func (v QuestionView) IsSubmitting() bool {
	return v.Phase == PhaseSubmitting
}

// NoneOffered reports an open new answer picker with nobody to pick.
func (v QuestionView) NoneOffered() bool {
	return v.Phase == PhaseSelecting && len(v.Options) <= 1
}
