// Package content classifies Telegram messages into typed snapshots: a
// content type, the visible text or caption, media attributes, and a
// fingerprint identifying the underlying file across edits.
package content

import (
	"database/sql"
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Content types recognized by the tracker.
const (
	TypeText      = "text"
	TypePhoto     = "photo"
	TypeVideo     = "video"
	TypeVideoNote = "video_note"
	TypeVoice     = "voice"
	TypeAudio     = "audio"
	TypeDocument  = "document"
	TypeSticker   = "sticker"
	TypeAnimation = "animation"
	TypeContact   = "contact"
	TypeLocation  = "location"
	TypePoll      = "poll"
	TypeVenue     = "venue"
	TypeDice      = "dice"
	TypeGame      = "game"
	TypeService   = "service"
	TypeUnknown   = "unknown"
)

// TypeNames maps content types to human-readable labels for notifications.
var TypeNames = map[string]string{
	TypeText:      "Text",
	TypePhoto:     "Photo",
	TypeVideo:     "Video",
	TypeVideoNote: "Video Note",
	TypeVoice:     "Voice Message",
	TypeAudio:     "Audio",
	TypeDocument:  "Document",
	TypeSticker:   "Sticker",
	TypeAnimation: "GIF",
	TypeContact:   "Contact",
	TypeLocation:  "Location",
	TypePoll:      "Poll",
	TypeVenue:     "Venue",
	TypeDice:      "Dice",
	TypeGame:      "Game",
	TypeService:   "Service Message",
	TypeUnknown:   "Unknown",
}

// TypeName returns the display label for a content type, falling back to the
// raw type string.
func TypeName(contentType string) string {
	if name, ok := TypeNames[contentType]; ok {
		return name
	}
	return contentType
}

// Snapshot is the classified content of one message at one point in time.
type Snapshot struct {
	Type        string
	Text        sql.NullString
	Duration    sql.NullInt64
	FileSize    sql.NullInt64
	Fingerprint sql.NullString
	Extra       sql.NullString
}

// Classify determines the content type of a Telegram message and extracts
// text, media attributes, fingerprint, and type-specific metadata.
func Classify(msg *models.Message) Snapshot {
	snap := Snapshot{Type: TypeUnknown}
	var extra Extra

	switch {
	case msg.Text != "":
		snap.Type = TypeText
		snap.Text = nullString(msg.Text)

	case len(msg.Photo) > 0:
		snap.Type = TypePhoto
		snap.Text = nullString(msg.Caption)
		largest := msg.Photo[len(msg.Photo)-1]
		snap.FileSize = nullInt64(int64(largest.FileSize))
		snap.Fingerprint = nullString(largest.FileID)

	case msg.Video != nil:
		snap.Type = TypeVideo
		snap.Text = nullString(msg.Caption)
		snap.Duration = nullInt64(int64(msg.Video.Duration))
		snap.FileSize = nullInt64(msg.Video.FileSize)
		snap.Fingerprint = nullString(msg.Video.FileID)

	case msg.VideoNote != nil:
		snap.Type = TypeVideoNote
		snap.Duration = nullInt64(int64(msg.VideoNote.Duration))
		snap.FileSize = nullInt64(int64(msg.VideoNote.FileSize))
		snap.Fingerprint = nullString(msg.VideoNote.FileID)

	case msg.Voice != nil:
		snap.Type = TypeVoice
		snap.Duration = nullInt64(int64(msg.Voice.Duration))
		snap.FileSize = nullInt64(msg.Voice.FileSize)
		snap.Fingerprint = nullString(msg.Voice.FileID)

	case msg.Audio != nil:
		snap.Type = TypeAudio
		snap.Text = nullString(msg.Caption)
		snap.Duration = nullInt64(int64(msg.Audio.Duration))
		snap.FileSize = nullInt64(msg.Audio.FileSize)
		snap.Fingerprint = nullString(msg.Audio.FileID)
		if msg.Audio.Title != "" || msg.Audio.Performer != "" {
			extra.Audio = &AudioExtra{Performer: msg.Audio.Performer, Title: msg.Audio.Title}
		}

	case msg.Document != nil:
		snap.Type = TypeDocument
		snap.Text = nullString(msg.Caption)
		snap.FileSize = nullInt64(msg.Document.FileSize)
		snap.Fingerprint = nullString(msg.Document.FileID)
		if msg.Document.FileName != "" {
			extra.Document = &DocumentExtra{FileName: msg.Document.FileName}
		}

	case msg.Sticker != nil:
		snap.Type = TypeSticker
		snap.Text = nullString(msg.Sticker.Emoji)
		snap.FileSize = nullInt64(int64(msg.Sticker.FileSize))
		snap.Fingerprint = nullString(msg.Sticker.FileID)

	case msg.Animation != nil:
		snap.Type = TypeAnimation
		snap.Text = nullString(msg.Caption)
		snap.Duration = nullInt64(int64(msg.Animation.Duration))
		snap.FileSize = nullInt64(msg.Animation.FileSize)
		snap.Fingerprint = nullString(msg.Animation.FileID)

	case msg.Contact != nil:
		snap.Type = TypeContact
		extra.Contact = &ContactExtra{
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
			PhoneNumber: msg.Contact.PhoneNumber,
		}

	case msg.Location != nil:
		snap.Type = TypeLocation
		extra.Location = &LocationExtra{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}

	case msg.Venue != nil:
		snap.Type = TypeVenue
		extra.Venue = &VenueExtra{Title: msg.Venue.Title, Address: msg.Venue.Address}

	case msg.Poll != nil:
		snap.Type = TypePoll
		snap.Text = nullString(msg.Poll.Question)
		pollExtra := &PollExtra{}
		for _, opt := range msg.Poll.Options {
			pollExtra.Options = append(pollExtra.Options, opt.Text)
		}
		extra.Poll = pollExtra

	case msg.Dice != nil:
		snap.Type = TypeDice
		snap.Text = nullString(msg.Dice.Emoji)
		extra.Dice = &DiceExtra{Value: msg.Dice.Value}

	case msg.Game != nil:
		snap.Type = TypeGame
		snap.Text = nullString(msg.Game.Title)
		extra.Game = &GameExtra{Description: msg.Game.Description}

	case msg.VideoChatStarted != nil:
		snap.Type = TypeService
		snap.Text = nullString("Video chat started")

	case msg.VideoChatEnded != nil:
		snap.Type = TypeService
		snap.Text = nullString(fmt.Sprintf("Video chat ended (%ds)", msg.VideoChatEnded.Duration))

	case msg.VideoChatScheduled != nil:
		snap.Type = TypeService
		snap.Text = nullString("Video chat scheduled")

	case msg.SuccessfulPayment != nil:
		snap.Type = TypeService
		snap.Text = nullString("Successful payment")

	case msg.ConnectedWebsite != "":
		snap.Type = TypeService
		snap.Text = nullString("Connected website: " + msg.ConnectedWebsite)
	}

	snap.Extra = EncodeExtra(extra)
	return snap
}

// FormatDuration renders a duration in seconds as M:SS or H:MM:SS.
func FormatDuration(seconds sql.NullInt64) string {
	if !seconds.Valid {
		return "0:00"
	}
	total := seconds.Int64
	minutes, secs := total/60, total%60
	hours, minutes := minutes/60, minutes%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
