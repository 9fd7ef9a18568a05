package mail

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
)

// ParseEML decodes an RFC 822 message. fallbackID is used when the message
// carries no Message-Id header. Labels come from X-Gmail-Labels, the header
// Google Takeout writes.
func ParseEML(r io.Reader, fallbackID string) (Message, error) {
	m, err := netmail.ReadMessage(r)
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}

	received, err := m.Header.Date()
	if err != nil {
		return Message{}, fmt.Errorf("message date: %w", err)
	}

	id := strings.Trim(strings.TrimSpace(m.Header.Get("Message-Id")), "<>")
	if id == "" {
		id = fallbackID
	}

	body, err := plainBody(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body)
	if err != nil {
		return Message{}, fmt.Errorf("message %s: %w", id, err)
	}

	msg := Message{
		ID:       id,
		Body:     body,
		Snippet:  snippetFrom(body),
		Received: received,
	}
	if labels := m.Header.Get("X-Gmail-Labels"); labels != "" {
		for _, l := range strings.Split(labels, ",") {
			if l = strings.TrimSpace(l); l != "" {
				msg.Labels = append(msg.Labels, l)
			}
		}
	}
	return msg, nil
}

// plainBody returns the first text/plain content, walking multipart bodies
// depth-first. A missing Content-Type means text/plain.
func plainBody(contentType, encoding string, r io.Reader) (string, error) {
	mediaType, params := "text/plain", map[string]string{}
	if contentType != "" {
		var err error
		mediaType, params, err = mime.ParseMediaType(contentType)
		if err != nil {
			return "", fmt.Errorf("content type: %w", err)
		}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", nil
			}
			if err != nil {
				return "", fmt.Errorf("multipart: %w", err)
			}
			// NextPart already strips quoted-printable and drops the header.
			body, err := plainBody(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			if body != "" {
				return body, nil
			}
		}
	}

	if mediaType != "text/plain" {
		return "", nil
	}
	data, err := io.ReadAll(transferDecoder(encoding, r))
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
