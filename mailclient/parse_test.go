package mailclient

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"mailpeek/models"
)

func withRawBody(msg *imap.Message, raw string) *imap.Message {
	msg.Body = map[*imap.BodySectionName]imap.Literal{
		&imap.BodySectionName{}: bytes.NewBufferString(raw),
	}
	return msg
}

const multipartRaw = "From: Alice <alice@example.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: greetings\r\n" +
	"Date: Mon, 06 May 2024 12:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=frontier\r\n" +
	"\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello there, this is the plain body of the message.\r\n" +
	"--frontier\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Hello there, this is the <b>HTML</b> body.</p>\r\n" +
	"--frontier--\r\n"

const htmlOnlyRaw = "From: Bob <bob@example.com>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: html only\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Quarterly report attached.</p><script>alert('x')</script><b>Regards</b>\r\n"

func TestParseSummaryEnvelope(t *testing.T) {
	date := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		SeqNum: 4,
		Uid:    204,
		Envelope: &imap.Envelope{
			Subject: "=?UTF-8?B?0J/RgNC40LLQtdGC?=",
			Date:    date,
			From: []*imap.Address{
				{PersonalName: "=?UTF-8?Q?Caf=C3=A9_Team?=", MailboxName: "team", HostName: "example.com"},
			},
		},
	}

	sum := parseSummary(msg)
	if sum.ParseFailed {
		t.Fatal("envelope-only message flagged as failed")
	}
	if sum.ID != "204" {
		t.Errorf("ID = %q, want 204", sum.ID)
	}
	if sum.Subject != "Привет" {
		t.Errorf("Subject = %q, want decoded Привет", sum.Subject)
	}
	if sum.From != "team@example.com" {
		t.Errorf("From = %q, want team@example.com", sum.From)
	}
	if sum.FromName != "Café Team" {
		t.Errorf("FromName = %q, want Café Team", sum.FromName)
	}
	if !sum.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", sum.Date, date)
	}
	if sum.Preview != "" {
		t.Errorf("Preview = %q, want empty without a body", sum.Preview)
	}
}

func TestParseSummaryPlainPreview(t *testing.T) {
	msg := withRawBody(&imap.Message{
		SeqNum:   1,
		Uid:      101,
		Envelope: &imap.Envelope{Subject: "greetings"},
	}, multipartRaw)

	sum := parseSummary(msg)
	if sum.ParseFailed {
		t.Fatalf("parse failed unexpectedly: %+v", sum)
	}
	if !strings.HasPrefix(sum.Preview, "Hello there, this is the plain body") {
		t.Errorf("Preview = %q, want the text/plain part", sum.Preview)
	}
	if sum.PreviewKind != models.PreviewPlain {
		t.Errorf("PreviewKind = %q, want plain", sum.PreviewKind)
	}
	if strings.Contains(sum.Preview, "<") {
		t.Errorf("Preview carries markup: %q", sum.Preview)
	}
}

func TestParseSummaryHTMLOnlyFallback(t *testing.T) {
	msg := withRawBody(&imap.Message{
		SeqNum:   1,
		Uid:      102,
		Envelope: &imap.Envelope{Subject: "html only"},
	}, htmlOnlyRaw)

	sum := parseSummary(msg)
	if sum.ParseFailed {
		t.Fatalf("parse failed unexpectedly: %+v", sum)
	}
	if !strings.Contains(sum.Preview, "Quarterly report attached.") {
		t.Errorf("Preview = %q, want stripped HTML text", sum.Preview)
	}
	if strings.Contains(sum.Preview, "alert") || strings.Contains(sum.Preview, "<") {
		t.Errorf("active or markup content leaked into preview: %q", sum.Preview)
	}
	if sum.PreviewKind != models.PreviewPlain {
		t.Errorf("PreviewKind = %q, want plain for a stripped excerpt", sum.PreviewKind)
	}
}

func TestParseSummaryCorruptBody(t *testing.T) {
	msg := withRawBody(&imap.Message{
		SeqNum:   1,
		Uid:      103,
		Envelope: &imap.Envelope{Subject: "broken"},
	}, "\x01\x02 this is not a mail header\r\n\r\nbody")

	sum := parseSummary(msg)
	if !sum.ParseFailed {
		t.Fatal("corrupt body should flag ParseFailed")
	}
	if sum.Subject != "broken" {
		t.Errorf("Subject = %q, envelope data should survive", sum.Subject)
	}
	if sum.ID != "103" {
		t.Errorf("ID = %q, want 103", sum.ID)
	}
}

func TestParseSummaryMissingEnvelope(t *testing.T) {
	sum := parseSummary(&imap.Message{SeqNum: 9, Uid: 109})
	if !sum.ParseFailed {
		t.Fatal("missing envelope should flag ParseFailed")
	}
	if sum.ID != "109" {
		t.Errorf("ID = %q, want 109", sum.ID)
	}
}

func TestMessageIDFallsBackToSeqNum(t *testing.T) {
	if got := messageID(&imap.Message{SeqNum: 7, Uid: 42}); got != "42" {
		t.Errorf("messageID = %q, want 42", got)
	}
	if got := messageID(&imap.Message{SeqNum: 7}); got != "7" {
		t.Errorf("messageID = %q, want 7", got)
	}
}

func TestDecodeHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "Hello World", "Hello World"},
		{"quoted printable", "=?UTF-8?Q?Caf=C3=A9?=", "Café"},
		{"base64 cyrillic", "=?UTF-8?B?0J/RgNC40LLQtdGC?=", "Привет"},
		{"malformed stays raw", "=?UTF-8?X?broken?=", "=?UTF-8?X?broken?="},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeHeader(tt.input); got != tt.want {
				t.Errorf("decodeHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasAttachments(t *testing.T) {
	tests := []struct {
		name string
		bs   *imap.BodyStructure
		want bool
	}{
		{"nil structure", nil, false},
		{"plain text", &imap.BodyStructure{MIMEType: "text", MIMESubType: "plain"}, false},
		{
			"attachment part",
			&imap.BodyStructure{
				MIMEType: "multipart",
				Parts: []*imap.BodyStructure{
					{MIMEType: "text", MIMESubType: "plain"},
					{MIMEType: "application", MIMESubType: "pdf", Disposition: "attachment"},
				},
			},
			true,
		},
		{
			"inline image",
			&imap.BodyStructure{
				MIMEType: "multipart",
				Parts: []*imap.BodyStructure{
					{MIMEType: "text", MIMESubType: "html"},
					{MIMEType: "image", MIMESubType: "png", Disposition: "inline"},
				},
			},
			true,
		},
		{
			"inline text is not an attachment",
			&imap.BodyStructure{
				MIMEType: "multipart",
				Parts: []*imap.BodyStructure{
					{MIMEType: "text", MIMESubType: "plain", Disposition: "inline"},
				},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasAttachments(tt.bs); got != tt.want {
				t.Errorf("hasAttachments = %v, want %v", got, tt.want)
			}
		})
	}
}
