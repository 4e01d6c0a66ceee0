package mailclient

import (
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"

	"mailpeek/models"
	"mailpeek/utils"
)

// previewMax caps the body excerpt length; truncation lands on a word
// boundary.
const previewMax = 160

// parseSummary turns one fetched message into a summary. It never fails
// outright: a message that cannot be parsed comes back as a placeholder
// with ParseFailed set, keeping whatever envelope data was readable.
func parseSummary(msg *imap.Message) models.MessageSummary {
	sum := models.MessageSummary{ID: messageID(msg), PreviewKind: models.PreviewPlain}

	env := msg.Envelope
	if env == nil {
		sum.ParseFailed = true
		return sum
	}
	sum.Subject = decodeHeader(env.Subject)
	sum.Date = env.Date
	if len(env.From) > 0 && env.From[0] != nil {
		sum.From = env.From[0].Address()
		sum.FromName = decodeHeader(env.From[0].PersonalName)
	}
	sum.HasAttachments = hasAttachments(msg.BodyStructure)

	preview, kind, err := extractPreview(msg.GetBody(&imap.BodySectionName{}))
	if err != nil {
		sum.ParseFailed = true
		return sum
	}
	sum.Preview = preview
	sum.PreviewKind = kind
	return sum
}

// messageID prefers the server UID; the sequence number stands in when the
// server omits UIDs. Either way the value is only unique within one fetch.
func messageID(msg *imap.Message) string {
	if msg.Uid != 0 {
		return strconv.FormatUint(uint64(msg.Uid), 10)
	}
	return strconv.FormatUint(uint64(msg.SeqNum), 10)
}

// decodeHeader folds RFC 2047 encoded words into UTF-8. Values that fail to
// decode come back as-is; a garbled subject beats a missing one.
func decodeHeader(encoded string) string {
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return encoded
	}
	return decoded
}

// hasAttachments walks the body structure for attachment dispositions.
// Inline parts count when they are not text (embedded images and the like).
// Content is never downloaded.
func hasAttachments(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if strings.EqualFold(bs.Disposition, "attachment") {
		return true
	}
	if strings.EqualFold(bs.Disposition, "inline") && !strings.EqualFold(bs.MIMEType, "text") {
		return true
	}
	for _, part := range bs.Parts {
		if hasAttachments(part) {
			return true
		}
	}
	return false
}

// extractPreview reads the message body and produces a display-safe excerpt.
// The first text/plain part wins; HTML-only messages fall back to a
// sanitized, tag-stripped excerpt. Either way the result is inert text,
// tagged plain. A nil reader (no body returned) yields an empty preview.
func extractPreview(r io.Reader) (string, models.PreviewKind, error) {
	if r == nil {
		return "", models.PreviewPlain, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", "", err
	}

	var plain, htmlBody string
	var readErr error
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", err
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := h.ContentType()
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if plain != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				if readErr == nil {
					readErr = err
				}
				continue
			}
			plain = string(body)
		case "text/html":
			if htmlBody != "" {
				continue
			}
			body, err := io.ReadAll(p.Body)
			if err != nil {
				if readErr == nil {
					readErr = err
				}
				continue
			}
			htmlBody = string(body)
		}
	}

	if plain != "" {
		return utils.Preview(plain, previewMax), models.PreviewPlain, nil
	}
	if htmlBody != "" {
		stripped := utils.StripHTML(utils.SanitizeHTML(htmlBody))
		return utils.Preview(stripped, previewMax), models.PreviewPlain, nil
	}
	if readErr != nil {
		return "", "", readErr
	}
	return "", models.PreviewPlain, nil
}
