package wizard

import (
	"html"
	"strconv"
	"strings"
)

// EventKind distinguishes admin input.
type EventKind int

const (
	EventText EventKind = iota + 1
	EventMedia
	EventAction
)

// Event is one admin input: a text message, a video or document, or a
// button press.
type Event struct {
	Kind EventKind
	Text string
	// HTML is Text with its formatting, when the transport provides it.
	HTML     string
	MediaRef string
	Action   string
	Item     string
}

func Text(s string) Event { return Event{Kind: EventText, Text: s} }

// TextHTML is a formatted text message.
func TextHTML(plain, formatted string) Event {
	return Event{Kind: EventText, Text: plain, HTML: formatted}
}

// Media is a video or document; caption is its HTML caption, if any.
func Media(ref, caption string) Event { return Event{Kind: EventMedia, MediaRef: ref, HTML: caption} }

func Action(a string) Event { return Event{Kind: EventAction, Action: a} }

func Select(a, item string) Event { return Event{Kind: EventAction, Action: a, Item: item} }

// Button actions.
const (
	ActBack     = "back"
	ActCancel   = "cancel"
	ActType     = "type"
	ActContinue = "continue"
	ActSkip     = "skip"
	ActToggle   = "toggle"
	ActDone     = "done"
	ActSave     = "save"
	ActEdit     = "edit"
	ActField    = "field"
	ActMore     = "more"
	ActRestart  = "restart"
	ActFinish   = "finish"

	ActName          = "name"
	ActCaption       = "caption"
	ActFile          = "file"
	ActCode          = "code"
	ActGenres        = "genres"
	ActDelete        = "delete"
	ActSeasons       = "seasons"
	ActEpisodes      = "episodes"
	ActSeason        = "season"
	ActEpisode       = "episode"
	ActRenameSeason  = "rename_season"
	ActDeleteSeason  = "delete_season"
	ActSeasonNumber  = "season_num"
	ActEpisodeNumber = "episode_num"
	ActDeleteEpisode = "delete_episode"
	ActYes           = "yes"
	ActNo            = "no"
)

type Button struct {
	Label  string
	Action string
	Item   string
}

// View is what the bot shows after an event. Text is HTML.
type View struct {
	State   State
	Text    string
	Media   string
	Buttons [][]Button
	// Notice is a one-off message such as a validation error.
	Notice string
	// Done means the session has ended.
	Done bool
}

func btn(label, action string) Button { return Button{Label: label, Action: action} }

func row(bs ...Button) []Button { return bs }

// grid lays buttons out n per row.
func grid(bs []Button, n int) [][]Button {
	var out [][]Button
	for len(bs) > 0 {
		k := n
		if len(bs) < k {
			k = len(bs)
		}
		out = append(out, bs[:k])
		bs = bs[k:]
	}
	return out
}

// captionOf returns the HTML form of a text event.
func captionOf(ev Event) string {
	if ev.HTML != "" {
		return strings.TrimSpace(ev.HTML)
	}
	return html.EscapeString(strings.TrimSpace(ev.Text))
}

// parseNumber accepts a positive decimal number.
func parseNumber(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
