// Package canvas holds the client-side view of the notes board: the cards,
// the one drag or resize in flight, and the rules for merging background
// refreshes into local state.
package canvas

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/notely-back/internal/client"
)

const MinSize = 50.0

var (
	ErrBusy        = errors.New("another card is being moved")
	ErrUnknownNote = errors.New("note is not on the canvas")
)

type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

type Point struct {
	X, Y float64
}

type Geometry struct {
	X, Y, Width, Height float64
}

func geometryOf(n *client.Note) Geometry {
	return Geometry{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

func (g Geometry) applyTo(n *client.Note) {
	n.X, n.Y, n.Width, n.Height = g.X, g.Y, g.Width, g.Height
}

// API is the part of the HTTP client the canvas needs.
type API interface {
	ListNotes(ctx context.Context) ([]client.Note, error)
	CreateNote(ctx context.Context, in client.NewNote) (*client.Note, error)
	UpdateNote(ctx context.Context, id uint64, patch client.NotePatch) (*client.Note, error)
	DeleteNote(ctx context.Context, id uint64) error
}

type interaction struct {
	noteID  uint64
	state   State
	atPress Geometry

	// pointer minus card origin, for dragging
	offset Point

	// pointer and size at press, for resizing
	start     Point
	startSize Point
}

// Canvas is safe for concurrent use. Pointer events and the poller may call
// it from different goroutines.
type Canvas struct {
	api    API
	logger *zap.SugaredLogger

	mu          sync.Mutex
	notes       []client.Note
	active      *interaction
	persisting  int
	version     uint64
	activeTopic *uint64
	search      string
	lastErr     error
}

func New(api API, logger *zap.SugaredLogger) *Canvas {
	return &Canvas{
		api:    api,
		logger: logger,
	}
}

func (c *Canvas) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Idle
	}
	return c.active.state
}

// Active returns the note under interaction, if any.
func (c *Canvas) Active() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return 0, false
	}
	return c.active.noteID, true
}

// Err returns the last failure surfaced to the user.
func (c *Canvas) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Notes returns a copy of every card, in server order.
func (c *Canvas) Notes() []client.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]client.Note, len(c.notes))
	copy(out, c.notes)
	return out
}

func (c *Canvas) Note(id uint64) (client.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.find(id); n != nil {
		return *n, true
	}
	return client.Note{}, false
}

// SetTopic restricts Visible to one topic. Nil shows every note.
func (c *Canvas) SetTopic(topicID *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if topicID == nil {
		c.activeTopic = nil
		return
	}
	id := *topicID
	c.activeTopic = &id
}

func (c *Canvas) SetSearch(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = strings.ToLower(strings.TrimSpace(query))
}

// Visible returns the cards matching the active topic and the search text.
// Search is case-insensitive over title and content.
func (c *Canvas) Visible() []client.Note {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]client.Note, 0, len(c.notes))
	for _, n := range c.notes {
		if c.activeTopic != nil && (n.TopicID == nil || *n.TopicID != *c.activeTopic) {
			continue
		}
		if c.search != "" &&
			!strings.Contains(strings.ToLower(n.Title), c.search) &&
			!strings.Contains(strings.ToLower(n.Content), c.search) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Suppressed reports whether a refresh would be discarded right now.
func (c *Canvas) Suppressed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppressed()
}

func (c *Canvas) suppressed() bool {
	return c.active != nil || c.persisting > 0
}

// Refresh replaces the cards with the server's list unless an interaction
// or its persist is in flight, or local state changed while the request was
// out. The bool reports whether the result was applied.
func (c *Canvas) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.suppressed() {
		c.mu.Unlock()
		return false, nil
	}
	version := c.version
	c.mu.Unlock()

	notes, err := c.api.ListNotes(ctx)
	if err != nil {
		c.fail(err)
		return false, errors.Wrap(err, "list notes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressed() || c.version != version {
		return false, nil
	}
	c.notes = notes
	c.lastErr = nil
	return true, nil
}

// PressMove starts dragging a card. The pointer keeps its offset from the
// card's corner for the whole drag.
func (c *Canvas) PressMove(noteID uint64, pointer Point) error {
	return c.press(noteID, Dragging, pointer)
}

// PressResize starts resizing a card from its bottom-right handle.
func (c *Canvas) PressResize(noteID uint64, pointer Point) error {
	return c.press(noteID, Resizing, pointer)
}

func (c *Canvas) press(noteID uint64, state State, pointer Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrBusy
	}
	n := c.find(noteID)
	if n == nil {
		return ErrUnknownNote
	}

	c.active = &interaction{
		noteID:    noteID,
		state:     state,
		offset:    Point{X: pointer.X - n.X, Y: pointer.Y - n.Y},
		start:     pointer,
		startSize: Point{X: n.Width, Y: n.Height},
		atPress:   geometryOf(n),
	}
	c.version++
	return nil
}

// Move updates the active card locally. Without an interaction it does
// nothing.
func (c *Canvas) Move(pointer Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	n := c.find(c.active.noteID)
	if n == nil {
		c.active = nil
		return
	}

	switch c.active.state {
	case Dragging:
		n.X = pointer.X - c.active.offset.X
		n.Y = pointer.Y - c.active.offset.Y
	case Resizing:
		n.Width = clampSize(c.active.startSize.X + pointer.X - c.active.start.X)
		n.Height = clampSize(c.active.startSize.Y + pointer.Y - c.active.start.Y)
	}
	c.version++
}

// Release ends the interaction and persists the final geometry with one
// update. If the update fails the card goes back to where it was at press.
// Releasing while idle is a no-op, so a second release never persists twice.
func (c *Canvas) Release(ctx context.Context) error {
	c.mu.Lock()
	in := c.active
	if in == nil {
		c.mu.Unlock()
		return nil
	}
	c.active = nil

	n := c.find(in.noteID)
	if n == nil {
		c.mu.Unlock()
		return nil
	}
	final := geometryOf(n)
	if final == in.atPress {
		c.mu.Unlock()
		return nil
	}

	patch := client.NotePatch{}
	switch in.state {
	case Dragging:
		patch.X, patch.Y = &final.X, &final.Y
	case Resizing:
		patch.Width, patch.Height = &final.Width, &final.Height
	}
	c.persisting++
	c.version++
	c.mu.Unlock()

	updated, err := c.api.UpdateNote(ctx, in.noteID, patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.persisting--
	c.version++

	// the card may have been deleted or re-grabbed meanwhile
	n = c.find(in.noteID)
	if err != nil {
		if n != nil && !c.isActive(in.noteID) {
			in.atPress.applyTo(n)
		}
		c.lastErr = err
		c.logger.Warnw("persist geometry failed", "note_id", in.noteID, "error", err)
		return errors.Wrap(err, "persist geometry")
	}
	if n != nil && !c.isActive(in.noteID) {
		*n = *updated
	}
	c.lastErr = nil
	return nil
}

// Cancel ends an interaction that lost its pointer, for example when the
// pointer is released outside the canvas. It behaves like Release.
func (c *Canvas) Cancel(ctx context.Context) error {
	return c.Release(ctx)
}

// Create adds a note on the server and places the returned card locally.
func (c *Canvas) Create(ctx context.Context, in client.NewNote) (*client.Note, error) {
	note, err := c.api.CreateNote(ctx, in)
	if err != nil {
		c.fail(err)
		return nil, errors.Wrap(err, "create note")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.find(note.ID) == nil {
		c.notes = append(c.notes, *note)
	}
	c.version++
	c.lastErr = nil
	return note, nil
}

// Delete removes the card once the server confirms.
func (c *Canvas) Delete(ctx context.Context, noteID uint64) error {
	if err := c.api.DeleteNote(ctx, noteID); err != nil {
		c.fail(err)
		return errors.Wrap(err, "delete note")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notes {
		if c.notes[i].ID == noteID {
			c.notes = append(c.notes[:i], c.notes[i+1:]...)
			break
		}
	}
	if c.isActive(noteID) {
		c.active = nil
	}
	c.version++
	c.lastErr = nil
	return nil
}

func (c *Canvas) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Canvas) isActive(noteID uint64) bool {
	return c.active != nil && c.active.noteID == noteID
}

func (c *Canvas) find(id uint64) *client.Note {
	for i := range c.notes {
		if c.notes[i].ID == id {
			return &c.notes[i]
		}
	}
	return nil
}

func clampSize(v float64) float64 {
	if v < MinSize {
		return MinSize
	}
	return v
}
