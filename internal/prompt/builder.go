// Package prompt composes the final model prompt from the fixed persona
// block and the user's literal text.
package prompt

// Builder is a pure concatenator: persona, blank line, delimiter, user text.
// Same inputs always yield the same prompt. No sanitization happens here;
// length limits are enforced downstream by the delivery channel.
type Builder struct {
	persona string
}

func NewBuilder(persona string) *Builder {
	return &Builder{persona: persona}
}

// Build returns the full prompt for a user question.
func (b *Builder) Build(userText string) string {
	return b.persona + "\n\nคำถาม: " + userText
}

// BuildImage returns the instruction handed to the image backend. The domain
// framing is fixed; only the subject varies.
func (b *Builder) BuildImage(subject string) string {
	return "Generate a food/health related image: " + subject
}
