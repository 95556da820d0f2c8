package expect

import (
	"fmt"
	"runtime"
)

// Annotation is a single key/value note attached to a frame.
type Annotation struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Page is a long-form diagnostic attached to a frame, like a computed diff.
type Page struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Frame records the execution of a single step in the chain.
type Frame struct {
	Name        string       `json:"name"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Pages       []Page       `json:"pages,omitempty"`
}

func (f Frame) clone() Frame {
	return Frame{
		Name:        f.Name,
		Annotations: append([]Annotation(nil), f.Annotations...),
		Pages:       append([]Page(nil), f.Pages...),
	}
}

func cloneFrames(frames []Frame) []Frame {
	if len(frames) == 0 {
		return nil
	}
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = f.clone()
	}
	return out
}

// SourceLoc identifies where an expectation was written.
type SourceLoc struct {
	Function string `json:"function,omitempty"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (l SourceLoc) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Caller returns the source location skip frames above the caller of Caller.
func Caller(skip int) SourceLoc {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SourceLoc{}
	}
	loc := SourceLoc{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// Context tracks the execution path through a chain of steps.
//
// The root context returned by NewContext has no frames. Each step advances
// it with Next, which returns an independent copy, so a step can hand the
// same context to several branches without them interfering. Frames visited
// by a sibling branch that went deeper can be pulled back in with Recover.
type Context struct {
	subject   string
	loc       SourceLoc
	visited   []Frame
	remaining []string
	recovered []Frame
}

// NewContext seeds a context for a chain with the given step names.
func NewContext(subject string, loc SourceLoc, steps []string) *Context {
	return &Context{
		subject:   subject,
		loc:       loc,
		remaining: steps,
	}
}

func (c *Context) clone() *Context {
	return &Context{
		subject:   c.subject,
		loc:       c.loc,
		visited:   cloneFrames(c.visited),
		remaining: c.remaining,
		recovered: cloneFrames(c.recovered),
	}
}

// Next returns a copy of the context advanced to the next step.
// Recovered frames are dropped since they belong to a different path.
func (c *Context) Next() *Context {
	if len(c.remaining) == 0 {
		panic("expect: no more steps in context (chain/step count mismatch)")
	}
	next := c.clone()
	next.visited = append(next.visited, Frame{Name: c.remaining[0]})
	next.remaining = c.remaining[1:]
	next.recovered = nil
	return next
}

// Fork returns an independent copy of the context.
func (c *Context) Fork() *Context {
	return c.clone()
}

func (c *Context) current() *Frame {
	if len(c.visited) == 0 {
		panic("expect: no visited frames (annotate called before the first step)")
	}
	return &c.visited[len(c.visited)-1]
}

// Annotate adds a key/value note to the current frame.
func (c *Context) Annotate(key string, value any) {
	frame := c.current()
	frame.Annotations = append(frame.Annotations, Annotation{Key: key, Value: fmt.Sprint(value)})
}

// TryAnnotate annotates the current frame only if the value has a
// structural representation.
func (c *Context) TryAnnotate(key string, value Annotated) {
	if value.Kind() == KindDebug {
		c.Annotate(key, value.String())
	}
}

// AddPage attaches long-form diagnostic text to the current frame.
func (c *Context) AddPage(title, content string) {
	frame := c.current()
	frame.Pages = append(frame.Pages, Page{Title: title, Content: content})
}

// Recover copies the frames other reached beyond this context's depth.
// other must have diverged from this context at or after its current frame.
func (c *Context) Recover(other *Context) {
	if other == nil {
		return
	}
	path := make([]Frame, 0, len(other.visited)+len(other.recovered))
	path = append(path, other.visited...)
	path = append(path, other.recovered...)
	if len(path) <= len(c.visited) {
		c.recovered = nil
		return
	}
	c.recovered = cloneFrames(path[len(c.visited):])
}

// Pass creates a successful output stamped with this context.
func (c *Context) Pass() *Result {
	return Pass(c)
}

// Fail creates a failed output stamped with this context.
func (c *Context) Fail(message string) *Result {
	return Fail(c, message)
}

// PassIf passes when ok is true and fails with message otherwise.
func (c *Context) PassIf(ok bool, message string) *Result {
	if ok {
		return Pass(c)
	}
	return Fail(c, message)
}

// Subject returns the diagnostic text of the original subject.
func (c *Context) Subject() string { return c.subject }

// Location returns where the expectation was written.
func (c *Context) Location() SourceLoc { return c.loc }

// Visited returns a copy of the frames visited on this path.
func (c *Context) Visited() []Frame { return cloneFrames(c.visited) }

// Recovered returns a copy of the frames recovered from a sibling path.
func (c *Context) Recovered() []Frame { return cloneFrames(c.recovered) }

// Remaining returns the names of the steps not yet visited on this path.
func (c *Context) Remaining() []string { return append([]string(nil), c.remaining...) }

// Unvisited returns the steps reached by neither this path nor a recovered one.
func (c *Context) Unvisited() []string {
	if len(c.recovered) >= len(c.remaining) {
		return nil
	}
	return append([]string(nil), c.remaining[len(c.recovered):]...)
}

// Depth returns the number of visited frames.
func (c *Context) Depth() int { return len(c.visited) }
