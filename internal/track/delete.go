package track

import (
	"github.com/telewatch/telewatch/internal/content"
	"github.com/telewatch/telewatch/internal/database"
)

// NoticeKind distinguishes the three notification shapes a deletion batch
// can produce.
type NoticeKind int

const (
	// NoticeSingle is one detailed notification for one record.
	NoticeSingle NoticeKind = iota
	// NoticeStickerGroup collapses a run of identical stickers into one
	// notification with a count and a single representative attachment.
	NoticeStickerGroup
	// NoticeTextBatch summarizes a run of text messages in one notification.
	NoticeTextBatch
)

// Notice is one notification instruction, carrying its member records in
// original batch order.
type Notice struct {
	Kind    NoticeKind
	Records []database.Message
}

// GroupDeleted collapses a resolved deletion batch into notification
// instructions in a single left-to-right pass. At most one run is open at a
// time: consecutive stickers sharing a fingerprint, or consecutive text
// messages. Anything else flushes the open run and stands alone. Relative
// order of the input is preserved throughout.
func GroupDeleted(records []database.Message) []Notice {
	var notices []Notice
	var run []database.Message
	runSticker := false

	flush := func() {
		if len(run) == 0 {
			return
		}
		kind := NoticeSingle
		if len(run) > 1 {
			if runSticker {
				kind = NoticeStickerGroup
			} else {
				kind = NoticeTextBatch
			}
		}
		notices = append(notices, Notice{Kind: kind, Records: run})
		run = nil
	}

	for _, rec := range records {
		switch rec.ContentType {
		case content.TypeSticker:
			if len(run) > 0 && runSticker && sameFingerprint(run[0], rec) {
				run = append(run, rec)
				continue
			}
			flush()
			runSticker = true
			run = []database.Message{rec}

		case content.TypeText:
			if len(run) > 0 && !runSticker {
				run = append(run, rec)
				continue
			}
			flush()
			runSticker = false
			run = []database.Message{rec}

		default:
			flush()
			notices = append(notices, Notice{Kind: NoticeSingle, Records: []database.Message{rec}})
		}
	}
	flush()

	return notices
}

// sameFingerprint reports whether two records carry the same media identity.
// Records without a fingerprint never match, not even each other.
func sameFingerprint(a, b database.Message) bool {
	return a.Fingerprint.Valid && b.Fingerprint.Valid && a.Fingerprint.String == b.Fingerprint.String
}
