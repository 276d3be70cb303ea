package types

// RenderChoice is one labeled option attached to an outbound message.
type RenderChoice struct {
	ID    string
	Label string
}

// Renderable is a platform-neutral outbound message. Adapters turn the
// choices into inline keyboards, interactive lists, or numbered fallbacks;
// the core never emits platform markup.
type Renderable struct {
	Body    string
	Choices []RenderChoice
}

// Text builds a choice-free Renderable.
func Text(body string) Renderable {
	return Renderable{Body: body}
}

// WithChoice appends one labeled choice and returns the message.
func (r Renderable) WithChoice(id, label string) Renderable {
	r.Choices = append(r.Choices, RenderChoice{ID: id, Label: label})
	return r
}
