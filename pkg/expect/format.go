package expect

import (
	"fmt"
	"strings"
)

// Formatter renders a failure as text.
type Formatter interface {
	Format(f *Failure) string
}

// DefaultFormatter renders every *Failure's Error text.
var DefaultFormatter Formatter = PlainFormatter()

// TextFormatter renders the failure layout, passing selected parts through
// optional styling functions.
type TextFormatter struct {
	Dim       func(string) string
	Error     func(string) string
	Reference func(string) string
}

// PlainFormatter renders failures without any styling.
func PlainFormatter() TextFormatter {
	return TextFormatter{}
}

func apply(style func(string) string, s string) string {
	if style == nil {
		return s
	}
	return style(s)
}

type pageRef struct {
	n     int
	title string
	body  string
}

// Format implements Formatter.
func (t TextFormatter) Format(f *Failure) string {
	cx := f.cx
	var b strings.Builder

	b.WriteString(apply(t.Error, "assertion failed:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", apply(t.Dim, "at:"), cx.loc)
	fmt.Fprintf(&b, "  %s %s\n", apply(t.Dim, "subject:"), indentTail(cx.subject, "  "))
	b.WriteString("\n")

	var pages []pageRef
	frames := make([]Frame, 0, len(cx.visited)+len(cx.recovered))
	frames = append(frames, cx.visited...)
	frames = append(frames, cx.recovered...)

	if len(frames) > 0 || len(cx.remaining) > 0 {
		b.WriteString("steps:\n")
	}
	for i, frame := range frames {
		var comment []string
		for _, p := range frame.Pages {
			ref := pageRef{n: len(pages) + 1, title: p.Title, body: p.Content}
			pages = append(pages, ref)
			comment = append(comment, apply(t.Reference, fmt.Sprintf("[%d]", ref.n)))
		}
		if i == len(cx.visited)-1 && f.message != "" {
			comment = append(comment, apply(t.Error, f.message))
		}

		fmt.Fprintf(&b, "  %s:", frame.Name)
		if len(comment) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(comment, " "))
		}
		b.WriteString("\n")
		for _, a := range frame.Annotations {
			fmt.Fprintf(&b, "    %s %s\n", apply(t.Dim, a.Key+":"), indentTail(a.Value, "      "))
		}
		b.WriteString("\n")
	}
	for _, name := range cx.Unvisited() {
		fmt.Fprintf(&b, "  %s: %s\n", name, apply(t.Dim, "(not visited)"))
	}

	for _, p := range pages {
		b.WriteString("\n")
		b.WriteString(apply(t.Reference, fmt.Sprintf("----- %s [%d] -----", p.title, p.n)))
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(p.body, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// indentTail indents every line of s after the first.
func indentTail(s, prefix string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
