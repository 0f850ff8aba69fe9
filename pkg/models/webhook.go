package models

// WebhookPayload is the incoming JSON from the Messenger Platform.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page's batch of messaging events.
type Entry struct {
	ID        string      `json:"id"` // page id
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
}

// Messaging is a single sender->recipient event.
type Messaging struct {
	Sender    Participant   `json:"sender"`
	Recipient Participant   `json:"recipient"`
	Timestamp int64         `json:"timestamp"`
	Message   *MessageEvent `json:"message,omitempty"`
	Postback  *Postback     `json:"postback,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

// MessageEvent carries the customer's text and/or attachments.
type MessageEvent struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	IsEcho      bool         `json:"is_echo,omitempty"`
}

// Attachment is a media item; only image URLs matter to the engine.
type Attachment struct {
	Type    string            `json:"type"` // image | video | audio | file
	Payload AttachmentPayload `json:"payload"`
}

type AttachmentPayload struct {
	URL string `json:"url"`
}

// Postback is a button tap; treated as text input.
type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}
