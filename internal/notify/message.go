// Package notify renders and delivers Air Quality emails.
package notify

import (
	"context"
	"strings"
)

// SubjectPrefix is prepended to every subject.
const SubjectPrefix = "Air Quality: "

// Attachment is a file sent along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a plain text email.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// NewMessage builds a message to a single recipient, prefixing the subject.
func NewMessage(to, subject, body string) Message {
	if !strings.HasPrefix(subject, SubjectPrefix) {
		subject = SubjectPrefix + subject
	}
	return Message{To: []string{to}, Subject: subject, Body: body}
}

// Attach adds a file to the message.
func (m *Message) Attach(name, contentType string, data []byte) {
	m.Attachments = append(m.Attachments, Attachment{Name: name, ContentType: contentType, Data: data})
}

// Mailer delivers a batch of messages over a single connection.
type Mailer interface {
	Send(ctx context.Context, msgs ...Message) error
}
