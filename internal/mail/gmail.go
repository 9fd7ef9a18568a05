package mail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// gmailMessage is the users.messages.get?format=full resource.
type gmailMessage struct {
	ID           string      `json:"id"`
	Snippet      string      `json:"snippet"`
	InternalDate json.Number `json:"internalDate"`
	LabelIDs     []string    `json:"labelIds"`
	Payload      *gmailPart  `json:"payload"`
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

// ParseGmailJSON decodes one saved Gmail API message.
func ParseGmailJSON(data []byte) (Message, error) {
	var gm gmailMessage
	if err := json.Unmarshal(data, &gm); err != nil {
		return Message{}, fmt.Errorf("decode gmail message: %w", err)
	}
	if gm.ID == "" {
		return Message{}, fmt.Errorf("gmail message has no id")
	}

	ms, err := gm.InternalDate.Int64()
	if err != nil {
		return Message{}, fmt.Errorf("gmail message %s: internalDate: %w", gm.ID, err)
	}

	msg := Message{
		ID:       gm.ID,
		Snippet:  gm.Snippet,
		Received: time.UnixMilli(ms),
		LabelIDs: gm.LabelIDs,
	}
	if gm.Payload != nil {
		body, err := gmailBody(gm.Payload)
		if err != nil {
			return Message{}, fmt.Errorf("gmail message %s: %w", gm.ID, err)
		}
		msg.Body = body
	}
	if msg.Snippet == "" {
		msg.Snippet = snippetFrom(msg.Body)
	}
	return msg, nil
}

// gmailBody returns the first text/plain part, searched depth-first, or the
// payload's own body when it has no parts.
func gmailBody(p *gmailPart) (string, error) {
	if part := findPlainPart(p); part != nil {
		return decodeBase64URL(part.Body.Data)
	}
	if len(p.Parts) == 0 && p.Body.Data != "" {
		return decodeBase64URL(p.Body.Data)
	}
	return "", nil
}

func findPlainPart(p *gmailPart) *gmailPart {
	if strings.HasPrefix(strings.ToLower(p.MimeType), "text/plain") && p.Body.Data != "" {
		return p
	}
	for i := range p.Parts {
		if found := findPlainPart(&p.Parts[i]); found != nil {
			return found
		}
	}
	return nil
}

// decodeBase64URL accepts padded or unpadded URL-safe base64, falling back
// to the standard alphabet.
func decodeBase64URL(s string) (string, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		var stdErr error
		if b, stdErr = base64.RawStdEncoding.DecodeString(s); stdErr != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
	}
	return string(b), nil
}
