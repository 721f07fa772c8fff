package poll

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode decides how many options one voter may hold.
type Mode string

const (
	Single   Mode = "Single"
	Multiple Mode = "Multiple"
)

// Modes lists the valid modes in the order they are offered.
var Modes = []Mode{Single, Multiple}

// ParseMode validates a raw mode string.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return "", InputError(fmt.Sprintf("poll option types must be one of %s", strings.Join(names, ", ")))
}

// Status is whether a poll still accepts votes.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Result is one option and the ids of the actors who chose it.
type Result struct {
	Option string   `json:"option"`
	Users  []string `json:"users"`
}

// Poll is the persisted poll document, keyed by its message id.
type Poll struct {
	Owner    string    `json:"owner"`
	Message  string    `json:"message"`
	Channel  string    `json:"channel"`
	Question string    `json:"question"`
	Results  []Result  `json:"results"`
	Type     Mode      `json:"type"`
	Expires  time.Time `json:"expires"`
	Status   Status    `json:"status"`
}

var ErrUnknownOption = errors.New("option is not part of this poll")

// InputError is a problem with what the invoker typed. Its text is shown to
// them unchanged.
type InputError string

func (e InputError) Error() string { return string(e) }

// Open reports whether the poll accepts votes at now.
func (p *Poll) Open(now time.Time) bool {
	return p.Status != StatusClosed && now.Before(p.Expires)
}

// Toggle flips actor's vote for option. It returns true when the vote was
// added and false when it was retracted. In Single mode adding a vote first
// removes the actor from every other option.
func (p *Poll) Toggle(actor, option string) (bool, error) {
	idx := slices.IndexFunc(p.Results, func(r Result) bool { return r.Option == option })
	if idx < 0 {
		return false, ErrUnknownOption
	}

	target := &p.Results[idx]
	if slices.Contains(target.Users, actor) {
		target.Users = slices.DeleteFunc(target.Users, func(u string) bool { return u == actor })
		return false, nil
	}

	if p.Type == Single {
		for i := range p.Results {
			p.Results[i].Users = slices.DeleteFunc(p.Results[i].Users, func(u string) bool { return u == actor })
		}
	}
	target.Users = append(target.Users, actor)
	return true, nil
}

// Tally returns the vote count per option in option order.
func (p *Poll) Tally() []int {
	out := make([]int, len(p.Results))
	for i, r := range p.Results {
		out[i] = len(r.Users)
	}
	return out
}

// ParseOptions splits a pipe separated option list. It rejects lists with
// fewer than two options, blank options or duplicates.
func ParseOptions(raw string, limit int) ([]string, error) {
	parts := strings.Split(raw, "|")
	options := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		opt := strings.TrimSpace(p)
		if opt == "" {
			return nil, InputError("Poll options cannot be empty.")
		}
		if _, dup := seen[opt]; dup {
			return nil, InputError("All poll options must be unique.")
		}
		seen[opt] = struct{}{}
		options = append(options, opt)
	}
	if len(options) < 2 {
		return nil, InputError("A poll needs at least two options, separated by `|`.")
	}
	if limit > 0 && len(options) > limit {
		return nil, InputError(fmt.Sprintf("A poll can have at most %d options.", limit))
	}
	return options, nil
}
