// Package deck models a slide-deck document (master, layouts, slides and
// their shape trees) and serializes it as a PresentationML package.
//
// Slides reference their layout by identifier. Nothing in the package
// resolves a layout by position, so a deck with several layouts stays
// well-formed.
package deck

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownLayout is returned when a slide references a layout id that is not in the deck.
	ErrUnknownLayout = errors.New("unknown layout")
	// ErrInvalidShapeTree is returned when a shape tree violates its id or role constraints.
	ErrInvalidShapeTree = errors.New("invalid shape tree")
)

// Identifier ranges used by PresentationML. Master and layout ids share one
// space starting at 2^31; slide ids start at 256.
const (
	FirstMasterID uint32 = 2147483648
	FirstSlideID  uint32 = 256

	// RootShapeID is reserved for the group shape that roots every shape tree.
	RootShapeID uint32 = 1
)

// Slide canvas in EMU (English Metric Units, 914400 per inch).
const (
	CanvasWidth  int64 = 9144000
	CanvasHeight int64 = 6858000
)

// Placeholder is the role a shape plays on its slide.
type Placeholder int

const (
	PlaceholderTitle Placeholder = iota + 1
	PlaceholderBody
)

func (p Placeholder) String() string {
	switch p {
	case PlaceholderTitle:
		return "title"
	case PlaceholderBody:
		return "body"
	default:
		return fmt.Sprintf("placeholder(%d)", int(p))
	}
}

// Size is a width and height in EMU.
type Size struct {
	Width  int64
	Height int64
}

// Rect positions a shape on the canvas, in EMU.
type Rect struct {
	X, Y          int64
	Width, Height int64
}

// Default frames for the title and body placeholders on a 4:3 canvas.
var (
	TitleFrame = Rect{X: 457200, Y: 274638, Width: 8229600, Height: 1143000}
	BodyFrame  = Rect{X: 457200, Y: 1600200, Width: 8229600, Height: 4525963}
)

// Shape is a placeholder shape holding a single run of text.
type Shape struct {
	ID          uint32
	Name        string
	Placeholder Placeholder
	Frame       Rect
	Text        string
}

// Layout is a slide layout owned by a master.
type Layout struct {
	ID     uint32
	Name   string
	Shapes []Shape
}

// Master is the slide master scaffold.
type Master struct {
	ID      uint32
	Name    string
	Shapes  []Shape
	Layouts []*Layout
}

// Slide is one content slide. LayoutID must name a layout of the deck's master.
type Slide struct {
	ID       uint32
	LayoutID uint32
	Shapes   []Shape
}

// Title returns the text of the slide's title shape.
func (s *Slide) Title() string { return s.text(PlaceholderTitle) }

// Body returns the text of the slide's body shape.
func (s *Slide) Body() string { return s.text(PlaceholderBody) }

func (s *Slide) text(p Placeholder) string {
	for _, sh := range s.Shapes {
		if sh.Placeholder == p {
			return sh.Text
		}
	}
	return ""
}

// Deck is the document tree: one master, its layouts, and the slides.
type Deck struct {
	Title   string
	Creator string
	Created time.Time
	Size    Size
	Master  *Master
	Slides  []*Slide
}

// DefaultLayoutName is the name of the layout created by New.
const DefaultLayoutName = "Title and Content"

// New returns a deck scaffold with a 4:3 canvas, one master and exactly one
// "Title and Content" layout.
func New(title string) *Deck {
	layout := &Layout{
		ID:     FirstMasterID + 1,
		Name:   DefaultLayoutName,
		Shapes: placeholderShapes("Title 1", "Content Placeholder 2", "", ""),
	}
	master := &Master{
		ID:      FirstMasterID,
		Name:    "Office Theme",
		Shapes:  placeholderShapes("Title Placeholder 1", "Text Placeholder 2", "", ""),
		Layouts: []*Layout{layout},
	}
	return &Deck{
		Title:   title,
		Created: time.Now().UTC(),
		Size:    Size{Width: CanvasWidth, Height: CanvasHeight},
		Master:  master,
	}
}

func placeholderShapes(titleName, bodyName, title, body string) []Shape {
	return []Shape{
		{ID: RootShapeID + 1, Name: titleName, Placeholder: PlaceholderTitle, Frame: TitleFrame, Text: title},
		{ID: RootShapeID + 2, Name: bodyName, Placeholder: PlaceholderBody, Frame: BodyFrame, Text: body},
	}
}

// DefaultLayout returns the first layout of the master, or nil for a deck without one.
func (d *Deck) DefaultLayout() *Layout {
	if d.Master == nil || len(d.Master.Layouts) == 0 {
		return nil
	}
	return d.Master.Layouts[0]
}

// Layout looks up a layout by id.
func (d *Deck) Layout(id uint32) (*Layout, bool) {
	if d.Master == nil {
		return nil, false
	}
	for _, l := range d.Master.Layouts {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// AddSlide appends a slide with a title and a body shape bound to the given layout.
func (d *Deck) AddSlide(layoutID uint32, title, body string) (*Slide, error) {
	if _, ok := d.Layout(layoutID); !ok {
		return nil, fmt.Errorf("adding slide: %w: %d", ErrUnknownLayout, layoutID)
	}
	s := &Slide{
		ID:       d.nextSlideID(),
		LayoutID: layoutID,
		Shapes:   placeholderShapes("Title 1", "Content 2", title, body),
	}
	d.Slides = append(d.Slides, s)
	return s, nil
}

func (d *Deck) nextSlideID() uint32 {
	next := FirstSlideID
	for _, s := range d.Slides {
		if s.ID >= next {
			next = s.ID + 1
		}
	}
	return next
}

// Validate checks the cross-references a conformant reader depends on.
func (d *Deck) Validate() error {
	if d.Master == nil {
		return errors.New("deck has no master")
	}
	if len(d.Master.Layouts) == 0 {
		return errors.New("master has no layouts")
	}
	if d.Size.Width <= 0 || d.Size.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", d.Size.Width, d.Size.Height)
	}

	ids := map[uint32]bool{d.Master.ID: true}
	if d.Master.ID < FirstMasterID {
		return fmt.Errorf("master id %d below %d", d.Master.ID, FirstMasterID)
	}
	if err := validateShapes(d.Master.Shapes); err != nil {
		return fmt.Errorf("master: %w", err)
	}
	for _, l := range d.Master.Layouts {
		if l.ID < FirstMasterID || ids[l.ID] {
			return fmt.Errorf("layout %q: id %d is reserved or duplicated", l.Name, l.ID)
		}
		ids[l.ID] = true
		if err := validateShapes(l.Shapes); err != nil {
			return fmt.Errorf("layout %q: %w", l.Name, err)
		}
	}

	slideIDs := make(map[uint32]bool, len(d.Slides))
	for i, s := range d.Slides {
		if s.ID < FirstSlideID || s.ID >= FirstMasterID || slideIDs[s.ID] {
			return fmt.Errorf("slide %d: id %d is out of range or duplicated", i+1, s.ID)
		}
		slideIDs[s.ID] = true
		if _, ok := d.Layout(s.LayoutID); !ok {
			return fmt.Errorf("slide %d: %w: %d", i+1, ErrUnknownLayout, s.LayoutID)
		}
		if err := validateShapes(s.Shapes); err != nil {
			return fmt.Errorf("slide %d: %w", i+1, err)
		}
	}
	return nil
}

// validateShapes enforces unique non-root ids and exactly one title and one body shape.
func validateShapes(shapes []Shape) error {
	seen := make(map[uint32]bool, len(shapes))
	var titles, bodies int
	for _, sh := range shapes {
		if sh.ID == 0 || sh.ID == RootShapeID {
			return fmt.Errorf("%w: shape %q has reserved id %d", ErrInvalidShapeTree, sh.Name, sh.ID)
		}
		if seen[sh.ID] {
			return fmt.Errorf("%w: duplicate shape id %d", ErrInvalidShapeTree, sh.ID)
		}
		seen[sh.ID] = true
		switch sh.Placeholder {
		case PlaceholderTitle:
			titles++
		case PlaceholderBody:
			bodies++
		default:
			return fmt.Errorf("%w: shape %d has no placeholder role", ErrInvalidShapeTree, sh.ID)
		}
	}
	if titles != 1 || bodies != 1 {
		return fmt.Errorf("%w: want one title and one body, got %d and %d", ErrInvalidShapeTree, titles, bodies)
	}
	return nil
}
