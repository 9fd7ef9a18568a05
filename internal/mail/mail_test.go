package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const reportBody = "Toileting: Wet Kavitha - posted 10:00 AM\nPlayed with clay\n"

func gmailJSON(id string, received time.Time, labels []string, payload string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf(`{"id": %q, "snippet": "Toileting: Wet Kavitha - posted 10:00 AM", "internalDate": "%d", "labelIds": [%s], "payload": %s}`,
		id, received.UnixMilli(), strings.Join(quoted, ","), payload)
}

func TestParseGmailJSON_MultipartPlain(t *testing.T) {
	data := base64.RawURLEncoding.EncodeToString([]byte(reportBody))
	payload := fmt.Sprintf(`{"mimeType": "multipart/alternative", "parts": [
		{"mimeType": "multipart/related", "parts": [{"mimeType": "text/plain", "body": {"data": %q}}]},
		{"mimeType": "text/html", "body": {"data": "PGI-aGk8L2I-"}}
	]}`, data)
	received := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	msg, err := ParseGmailJSON([]byte(gmailJSON("m1", received, []string{"INBOX", "Label_4821"}, payload)))
	if err != nil {
		t.Fatalf("ParseGmailJSON() error = %v", err)
	}
	if msg.Body != reportBody {
		t.Errorf("Body = %q, want %q", msg.Body, reportBody)
	}
	if !msg.Received.Equal(received) {
		t.Errorf("Received = %v, want %v", msg.Received, received)
	}
	if !msg.HasLabelID("Label_4821") || msg.HasLabelID("label_4821") {
		t.Errorf("LabelIDs = %v, want exact id match", msg.LabelIDs)
	}
	if len(msg.Labels) != 0 {
		t.Errorf("Labels = %v, want none from labelIds", msg.Labels)
	}
}

func TestParseGmailJSON_PaddedSinglePart(t *testing.T) {
	data := base64.URLEncoding.EncodeToString([]byte("Nap: Start - posted 12:46 PM"))
	payload := fmt.Sprintf(`{"mimeType": "text/plain", "body": {"data": %q}}`, data)

	msg, err := ParseGmailJSON([]byte(gmailJSON("m2", time.Now(), nil, payload)))
	if err != nil {
		t.Fatalf("ParseGmailJSON() error = %v", err)
	}
	if msg.Body != "Nap: Start - posted 12:46 PM" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestParseGmailJSON_Errors(t *testing.T) {
	tests := []struct {
		name, input string
	}{
		{"not json", `{`},
		{"no id", `{"snippet": "x", "internalDate": "1"}`},
		{"bad date", `{"id": "x", "internalDate": "soon"}`},
		{"bad body", `{"id": "x", "internalDate": "1", "payload": {"mimeType": "text/plain", "body": {"data": "!!!"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGmailJSON([]byte(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

const multipartEML = "From: Altitude <noreply@example.com>\r\n" +
	"To: parent@example.com\r\n" +
	"Subject: Activity update\r\n" +
	"Date: Tue, 10 Jun 2025 10:02:00 -0700\r\n" +
	"Message-Id: <abc123@example.com>\r\n" +
	"X-Gmail-Labels: Inbox,Altitude\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Toileting: Wet Kavitha - posted 10:00 AM=0AWorked with cl=\r\n" +
	"ay\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>ignored</p>\r\n" +
	"--XYZ--\r\n"

func TestParseEML_MultipartQuotedPrintable(t *testing.T) {
	msg, err := ParseEML(strings.NewReader(multipartEML), "fallback")
	if err != nil {
		t.Fatalf("ParseEML() error = %v", err)
	}
	if msg.ID != "abc123@example.com" {
		t.Errorf("ID = %q", msg.ID)
	}
	if !strings.Contains(msg.Body, "Worked with clay") {
		t.Errorf("Body = %q, want decoded quoted-printable", msg.Body)
	}
	if !strings.HasPrefix(msg.Snippet, "Toileting: Wet Kavitha - posted 10:00 AM") {
		t.Errorf("Snippet = %q", msg.Snippet)
	}
	if !msg.HasLabel("ALTITUDE") {
		t.Errorf("Labels = %v, want case-insensitive name match", msg.Labels)
	}
}

func TestParseEML_Base64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(reportBody))
	raw := "Date: Tue, 10 Jun 2025 10:02:00 +0000\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		encoded[:20] + "\r\n" + encoded[20:] + "\r\n"

	msg, err := ParseEML(strings.NewReader(raw), "file-1")
	if err != nil {
		t.Fatalf("ParseEML() error = %v", err)
	}
	if msg.ID != "file-1" {
		t.Errorf("ID = %q, want fallback", msg.ID)
	}
	if msg.Body != reportBody {
		t.Errorf("Body = %q, want %q", msg.Body, reportBody)
	}
}

func TestParseEML_NoDate(t *testing.T) {
	if _, err := ParseEML(strings.NewReader("Subject: x\r\n\r\nbody\r\n"), "f"); err == nil {
		t.Error("expected error for message without Date")
	}
}

func TestSnippetFrom(t *testing.T) {
	if got := snippetFrom("  a\n\n b\tc  "); got != "a b c" {
		t.Errorf("snippetFrom = %q", got)
	}
	long := strings.Repeat("é", 300)
	if got := snippetFrom(long); len([]rune(got)) != snippetRunes {
		t.Errorf("snippet has %d runes, want %d", len([]rune(got)), snippetRunes)
	}
}

func TestQuery(t *testing.T) {
	q, err := Query("altitude", "2025-06-30")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if q != "label:altitude after:2025-06-30 before:2025-07-01" {
		t.Errorf("Query() = %q", q)
	}
	if _, err := Query("altitude", "June 30"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func writeInbox(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestDirSource_Messages(t *testing.T) {
	dir := t.TempDir()
	payload := `{"mimeType": "text/plain", "body": {"data": ""}}`
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	writeInbox(t, dir, "late.json", gmailJSON("late", day.Add(15*time.Hour), []string{"INBOX", "Label_4821"}, payload))
	writeInbox(t, dir, "early.json", gmailJSON("early", day.Add(9*time.Hour), []string{"Label_4821", "UNREAD"}, payload))
	writeInbox(t, dir, "other-label.json", gmailJSON("promo", day.Add(10*time.Hour), []string{"CATEGORY_PROMOTIONS"}, payload))
	writeInbox(t, dir, "next-day.json", gmailJSON("tomorrow", day.Add(30*time.Hour), []string{"Label_4821"}, payload))
	writeInbox(t, dir, "broken.json", `{`)
	writeInbox(t, dir, "notes.txt", "ignored")
	writeInbox(t, dir, "report.eml", strings.Replace(multipartEML, "-0700", "+0000", 1))

	src := NewDirSource(dir, "altitude", "Label_4821", time.UTC)
	msgs, err := src.Messages(context.Background(), "2025-06-10")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	want := []string{"early", "abc123@example.com", "late"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestDirSource_GmailLabelIDs(t *testing.T) {
	dir := t.TempDir()
	payload := `{"mimeType": "text/plain", "body": {"data": ""}}`
	received := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	// API exports list ids only; the label name never appears in labelIds.
	writeInbox(t, dir, "m.json", gmailJSON("m", received, []string{"INBOX", "UNREAD", "Label_4821"}, payload))

	tests := []struct {
		name    string
		labelID string
		want    int
	}{
		{"no id configured", "", 1},
		{"matching id", "Label_4821", 1},
		{"other id", "Label_9", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msgs, err := NewDirSource(dir, "altitude", tc.labelID, time.UTC).Messages(context.Background(), "2025-06-10")
			if err != nil {
				t.Fatalf("Messages() error = %v", err)
			}
			if len(msgs) != tc.want {
				t.Errorf("got %d messages, want %d", len(msgs), tc.want)
			}
		})
	}
}

func TestDirSource_Timezone(t *testing.T) {
	dir := t.TempDir()
	payload := `{"mimeType": "text/plain", "body": {"data": ""}}`
	// 02:00 UTC on the 11th is still the 10th in Los Angeles.
	writeInbox(t, dir, "m.json", gmailJSON("m", time.Date(2025, 6, 11, 2, 0, 0, 0, time.UTC), nil, payload))

	loc := time.FixedZone("PDT", -7*3600)
	msgs, err := NewDirSource(dir, "altitude", "", loc).Messages(context.Background(), "2025-06-10")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(msgs))
	}
}

func TestDirSource_Errors(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "missing"), "altitude", "", nil)
	if _, err := src.Messages(context.Background(), "2025-06-10"); err == nil {
		t.Error("expected error for missing inbox")
	}

	src = NewDirSource(t.TempDir(), "altitude", "", nil)
	if _, err := src.Messages(context.Background(), "06/10/2025"); err == nil {
		t.Error("expected error for malformed date")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	writeInbox(t, dir, "a.json", `{}`)
	if _, err := NewDirSource(dir, "", "", nil).Messages(ctx, "2025-06-10"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
