// Package notify renders and delivers operator notifications. Rendering
// produces Telegram HTML; delivery is best-effort with a plain-text fallback
// when a media resend fails.
package notify

import (
	"database/sql"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
)

// batchTextLimit bounds each member's text inside a batch summary.
const batchTextLimit = 200

// Party describes who a notification is about and how to label them.
// Outgoing messages are attributed to "You" with the counterpart chat named
// separately; incoming messages are attributed to the counterpart directly.
type Party struct {
	Label  string // display name, already chosen by the caller
	UserID int64
	Link   string // deep link to the user, optional
	ToChat string // set for outgoing: the counterpart chat name
}

// Renderer builds notification bodies with timestamps localized to the
// configured timezone.
type Renderer struct {
	loc *time.Location
}

// NewRenderer creates a renderer localizing timestamps to loc.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// FullTime formats an event time as dd/mm/yy hh:mm in the local timezone.
func (r *Renderer) FullTime(t time.Time) string {
	return t.In(r.loc).Format("02/01/06 15:04")
}

// ShortTime formats an event time as hh:mm in the local timezone.
func (r *Renderer) ShortTime(t time.Time) string {
	return t.In(r.loc).Format("15:04")
}

func (r *Renderer) header(tag string, p Party, ts time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>[%s] [ %s ] <code>%d</code></b>\n", tag, r.partyLink(p), p.UserID)
	if p.ToChat != "" {
		fmt.Fprintf(&b, "💬 <b>To:</b> %s\n", html.EscapeString(p.ToChat))
	}
	fmt.Fprintf(&b, "Message from %s\n", r.FullTime(ts))
	return b.String()
}

func (r *Renderer) partyLink(p Party) string {
	label := html.EscapeString(p.Label)
	if p.Link == "" {
		return label
	}
	return fmt.Sprintf("<a href=\"%s\">%s</a>", p.Link, label)
}

func textOrEmpty(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "<i>empty</i>"
	}
	return "<code>" + html.EscapeString(s.String) + "</code>"
}

func captionBlock(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return ""
	}
	return "\n<b>Caption:</b>\n<blockquote><code>" + html.EscapeString(s.String) + "</code></blockquote>"
}

// EditedText renders a before/after body for a plain text edit.
func (r *Renderer) EditedText(p Party, ts time.Time, oldText, newText sql.NullString) string {
	return r.header("EDITED", p, ts) +
		"\n<b>Was:</b>\n<blockquote>" + textOrEmpty(oldText) + "</blockquote>\n" +
		"<b>Now:</b>\n<blockquote>" + textOrEmpty(newText) + "</blockquote>"
}

// EditedCaption renders a before/after body for a media caption edit.
func (r *Renderer) EditedCaption(p Party, ts time.Time, mediaType string, oldText, newText sql.NullString) string {
	return r.header("EDITED", p, ts) +
		fmt.Sprintf("\n<b>Caption to %s changed:</b>\n\n", content.TypeName(mediaType)) +
		"<b>Was:</b>\n<blockquote>" + textOrEmpty(oldText) + "</blockquote>\n\n" +
		"<b>Now:</b>\n<blockquote>" + textOrEmpty(newText) + "</blockquote>"
}

// EditedMedia renders the body for a media swap without a text change. The
// old and new attachments are sent separately by the caller.
func (r *Renderer) EditedMedia(p Party, ts time.Time, oldType, newType string, typeChanged bool, caption sql.NullString) string {
	var change string
	if typeChanged {
		change = fmt.Sprintf("<b>Type changed:</b> %s ➡️ %s", content.TypeName(oldType), content.TypeName(newType))
	} else {
		change = fmt.Sprintf("<b>Media updated:</b> %s replaced with another", content.TypeName(newType))
	}
	return r.header("EDITED", p, ts) + "\n" + change + captionBlock(caption)
}

// EditedGeneric renders the fallback body naming the changed dimensions.
func (r *Renderer) EditedGeneric(p Party, ts time.Time, changed []string) string {
	return r.header("EDITED", p, ts) +
		"\n<b>Changed:</b> " + html.EscapeString(strings.Join(changed, ", "))
}

// TypeChangeInfo is appended to text/caption edit bodies when the content
// type or media changed alongside the text.
func TypeChangeInfo(typeChanged, mediaChanged bool, oldType, newType string) string {
	switch {
	case typeChanged:
		return fmt.Sprintf("\n\n<b>Info:</b> Media type changed (%s ➡️ %s)", content.TypeName(oldType), content.TypeName(newType))
	case mediaChanged:
		return "\n\n<b>Info:</b> Media attachment also updated"
	default:
		return ""
	}
}

// DeletedSingle renders one detailed deletion notice with a type-specific body.
func (r *Renderer) DeletedSingle(rec database.Message, p Party) string {
	head := r.header("DELETED", p, rec.Timestamp)

	extra := content.DecodeExtra(rec.Extra)
	switch rec.ContentType {
	case content.TypeText:
		return head + "\n<b>Deleted:</b>\n<blockquote>" + textOrEmpty(rec.Text) + "</blockquote>"
	case content.TypePhoto, content.TypeDocument, content.TypeSticker:
		body := head + "\n<b>Deleted: " + content.TypeName(rec.ContentType) + "</b>"
		if rec.ContentType == content.TypeDocument && extra.Document != nil {
			body += "\nFile: <code>" + html.EscapeString(extra.Document.FileName) + "</code>"
		}
		if rec.ContentType != content.TypeSticker {
			body += captionBlock(rec.Text)
		}
		return body
	case content.TypeVideo, content.TypeAudio, content.TypeAnimation:
		return head + "\n<b>Deleted: " + content.TypeName(rec.ContentType) + "</b>\nDuration: " +
			content.FormatDuration(rec.Duration) + captionBlock(rec.Text)
	case content.TypeVideoNote, content.TypeVoice:
		return head + "\n<b>Deleted: " + content.TypeName(rec.ContentType) + "</b>\nDuration: " +
			content.FormatDuration(rec.Duration)
	case content.TypeContact:
		info := ""
		if extra.Contact != nil {
			info = strings.TrimSpace(extra.Contact.FirstName + " " + extra.Contact.LastName)
			info += "\n" + extra.Contact.PhoneNumber
		}
		return head + "\n<b>Deleted: Contact</b>\n<blockquote>" + html.EscapeString(info) + "</blockquote>"
	case content.TypeLocation:
		coords := ""
		if extra.Location != nil {
			coords = fmt.Sprintf("%f, %f", extra.Location.Latitude, extra.Location.Longitude)
		}
		return head + "\n<b>Deleted: Location</b>\nCoordinates: <code>" + coords + "</code>"
	case content.TypePoll:
		return head + "\n<b>Deleted: Poll</b>\nQuestion: " + textOrEmpty(rec.Text)
	case content.TypeVenue:
		info := ""
		if extra.Venue != nil {
			info = extra.Venue.Title + "\n" + extra.Venue.Address
		}
		return head + "\n<b>Deleted: Venue</b>\n" + html.EscapeString(info)
	case content.TypeDice:
		value := ""
		if extra.Dice != nil {
			value = fmt.Sprintf("%d", extra.Dice.Value)
		}
		return head + "\n<b>Deleted: " + textOrEmpty(rec.Text) + "</b>\nValue: " + value
	case content.TypeGame:
		return head + "\n<b>Deleted: Game</b>\n" + textOrEmpty(rec.Text)
	default:
		return head + "\n<b>Deleted: " + html.EscapeString(content.TypeName(rec.ContentType)) + "</b>" + captionBlock(rec.Text)
	}
}

// DeletedStickerGroup renders the collapsed notice for a run of identical
// stickers; the single representative attachment is sent by the caller.
func (r *Renderer) DeletedStickerGroup(sample database.Message, p Party, count int) string {
	return fmt.Sprintf("<b>DELETED (%d stickers)</b>\n%s | %s\n",
		count, r.partyLink(p), r.FullTime(sample.Timestamp)) +
		toChatLine(p) +
		fmt.Sprintf("\n<b>Type:</b> Identical stickers (x%d)", count)
}

// DeletedTextBatch renders the summary for a run of deleted text messages,
// listing each member's local time and truncated text in original order.
func (r *Renderer) DeletedTextBatch(records []database.Message, p Party) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>BULK DELETION (Text: %d)</b>\n", len(records))
	if p.ToChat != "" {
		fmt.Fprintf(&b, "💬 <b>To:</b> %s\n", html.EscapeString(p.ToChat))
	} else {
		fmt.Fprintf(&b, "👤 %s\n", r.partyLink(p))
	}
	b.WriteString("\n")
	for i, rec := range records {
		fmt.Fprintf(&b, "<b>%d. %s</b>\n<blockquote>%s</blockquote>\n\n",
			i+1, r.ShortTime(rec.Timestamp), truncatedText(rec.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncatedText(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "<i>no text</i>"
	}
	runes := []rune(s.String)
	if len(runes) > batchTextLimit {
		return html.EscapeString(string(runes[:batchTextLimit])) + "…"
	}
	return html.EscapeString(s.String)
}

func toChatLine(p Party) string {
	if p.ToChat == "" {
		return ""
	}
	return "💬 <b>To:</b> " + html.EscapeString(p.ToChat) + "\n"
}

// OwnerConnected renders the greeting after a business connection is enabled.
func OwnerConnected() string {
	return "<b>[CONNECTED]</b>\n\n" +
		"Bot successfully connected to your Telegram Business account.\n" +
		"You will now receive notifications about edited and deleted messages from clients."
}

// OwnerDisconnected renders the farewell after a connection is disabled.
func OwnerDisconnected() string {
	return "<b>[DISCONNECTED]</b>\n\nBot disconnected from your Telegram Business account."
}

// NewClient renders the notice about a first message from an unseen client.
func NewClient(userID int64, fullName string, premium bool) string {
	body := fmt.Sprintf("<b>[NEW CLIENT] [ <a href=\"tg://user?id=%d\">%s</a> ]</b>\n\n<b>ID: </b><code>%d</code>",
		userID, html.EscapeString(fullName), userID)
	if premium {
		body += "\n⭐ Premium"
	}
	return body
}
