package inspector

import (
	"fmt"
	"io"
	"strings"

	rdata "github.com/goliatone/go-rendererdata"
)

// Call records one draw call made on a ScriptSurface.
type Call struct {
	Kind  string
	Label string
	Value any
}

// ScriptSurface is a headless rdata.Surface that answers draw calls from a
// script. Inputs not scripted echo the drawn value, so drawing with an empty
// script changes nothing. Scripted text, field, button and choice answers are
// consumed by the first matching call.
type ScriptSurface struct {
	// OnHeader answers Header calls. When nil the header's own state is
	// returned with no action.
	OnHeader func(rdata.Header) rdata.HeaderResult
	Texts    map[string]string
	Fields   map[string]any
	// Presses counts how many times Button(label) reports a click.
	Presses map[string]int
	// Choice answers the next Choose call.
	Choice string

	Calls []Call
}

// Header implements rdata.Surface.
func (s *ScriptSurface) Header(header rdata.Header) rdata.HeaderResult {
	s.record("header", header.Title, header)
	if s.OnHeader != nil {
		return s.OnHeader(header)
	}
	return rdata.HeaderResult{Active: header.Active, Expanded: header.Expanded}
}

// TextField implements rdata.Surface.
func (s *ScriptSurface) TextField(label, value string) string {
	s.record("text", label, value)
	if next, ok := s.Texts[label]; ok {
		delete(s.Texts, label)
		return next
	}
	return value
}

// Field implements rdata.Surface.
func (s *ScriptSurface) Field(label string, value any) any {
	s.record("field", label, value)
	if next, ok := s.Fields[label]; ok {
		delete(s.Fields, label)
		return next
	}
	return value
}

// HelpBox implements rdata.Surface.
func (s *ScriptSurface) HelpBox(kind rdata.MessageKind, message string) {
	s.record("help", message, kind)
}

// Button implements rdata.Surface.
func (s *ScriptSurface) Button(label string) bool {
	s.record("button", label, nil)
	if s.Presses[label] > 0 {
		s.Presses[label]--
		return true
	}
	return false
}

// Choose implements rdata.Surface.
func (s *ScriptSurface) Choose(title string, items []rdata.MenuItem) string {
	s.record("choose", title, items)
	choice := s.Choice
	s.Choice = ""
	return choice
}

// Press schedules one click on the button labelled label.
func (s *ScriptSurface) Press(label string) *ScriptSurface {
	if s.Presses == nil {
		s.Presses = map[string]int{}
	}
	s.Presses[label]++
	return s
}

// Drawn returns the labels of every call of kind, in order.
func (s *ScriptSurface) Drawn(kind string) []string {
	var out []string
	for _, call := range s.Calls {
		if call.Kind == kind {
			out = append(out, call.Label)
		}
	}
	return out
}

func (s *ScriptSurface) record(kind, label string, value any) {
	s.Calls = append(s.Calls, Call{Kind: kind, Label: label, Value: value})
}

// TextSurface prints every draw call to a writer and never changes a value.
type TextSurface struct {
	w      io.Writer
	indent string
}

// NewTextSurface writes to w.
func NewTextSurface(w io.Writer) *TextSurface {
	return &TextSurface{w: w}
}

// Header implements rdata.Surface.
func (s *TextSurface) Header(header rdata.Header) rdata.HeaderResult {
	fold := "+"
	if header.Expanded {
		fold = "-"
	}
	toggle := "   "
	if header.ToggleEnabled {
		toggle = "[ ]"
		if header.Active {
			toggle = "[x]"
		}
	}
	line := fmt.Sprintf("%s %s %s", fold, toggle, header.Title)
	if header.Tooltip != "" {
		line += " (" + header.Tooltip + ")"
	}
	s.indent = ""
	s.println(line)
	s.indent = "    "
	return rdata.HeaderResult{Active: header.Active, Expanded: header.Expanded}
}

// TextField implements rdata.Surface.
func (s *TextSurface) TextField(label, value string) string {
	s.println(label + ": " + value)
	return value
}

// Field implements rdata.Surface.
func (s *TextSurface) Field(label string, value any) any {
	s.println(fmt.Sprintf("%s: %v", label, value))
	return value
}

// HelpBox implements rdata.Surface.
func (s *TextSurface) HelpBox(kind rdata.MessageKind, message string) {
	prefix := "info"
	switch kind {
	case rdata.MessageWarning:
		prefix = "warning"
	case rdata.MessageError:
		prefix = "error"
	}
	s.println(fmt.Sprintf("(%s) %s", prefix, message))
}

// Button implements rdata.Surface.
func (s *TextSurface) Button(label string) bool {
	s.indent = ""
	s.println("[" + label + "]")
	return false
}

// Choose implements rdata.Surface.
func (s *TextSurface) Choose(title string, items []rdata.MenuItem) string {
	labels := make([]string, len(items))
	for i, item := range items {
		labels[i] = item.Label
	}
	s.println(title + ": " + strings.Join(labels, ", "))
	return ""
}

func (s *TextSurface) println(line string) {
	if s.w == nil {
		return
	}
	fmt.Fprintln(s.w, s.indent+line)
}
