package domain

// IntentKind classifies the purpose of an inbound message.
type IntentKind string

const (
	IntentTextQuery    IntentKind = "text_query"
	IntentImageRequest IntentKind = "image_request"
)

// Intent is the classified purpose of a message. For image requests, Subject
// is the message text with all trigger phrases stripped and trimmed; an empty
// Subject means the user asked for an image without saying what to draw.
type Intent struct {
	Kind    IntentKind
	Text    string // original message text (text queries)
	Subject string // stripped subject (image requests)
}

// Classifier turns raw message text into an Intent. Implementations must be
// safe for concurrent use.
type Classifier interface {
	Classify(text string) Intent
}
