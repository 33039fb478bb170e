package content

import (
	"database/sql"
	"encoding/json"
)

// Extra carries type-specific metadata that does not fit the common message
// columns. Exactly one variant is set, matching the content type; the whole
// union is serialized to a single JSON column.
type Extra struct {
	Document *DocumentExtra `json:"document,omitempty"`
	Audio    *AudioExtra    `json:"audio,omitempty"`
	Contact  *ContactExtra  `json:"contact,omitempty"`
	Location *LocationExtra `json:"location,omitempty"`
	Venue    *VenueExtra    `json:"venue,omitempty"`
	Poll     *PollExtra     `json:"poll,omitempty"`
	Dice     *DiceExtra     `json:"dice,omitempty"`
	Game     *GameExtra     `json:"game,omitempty"`
}

// IsZero reports whether no variant is set.
func (e Extra) IsZero() bool {
	return e == Extra{}
}

type DocumentExtra struct {
	FileName string `json:"file_name"`
}

type AudioExtra struct {
	Performer string `json:"performer,omitempty"`
	Title     string `json:"title,omitempty"`
}

type ContactExtra struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number"`
}

type LocationExtra struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type VenueExtra struct {
	Title   string `json:"title"`
	Address string `json:"address"`
}

type PollExtra struct {
	Options []string `json:"options,omitempty"`
}

type DiceExtra struct {
	Value int `json:"value"`
}

type GameExtra struct {
	Description string `json:"description,omitempty"`
}

// EncodeExtra serializes the union for storage. A zero union encodes as NULL
// rather than "{}" so that unchanged comparisons stay trivial.
func EncodeExtra(e Extra) sql.NullString {
	if e.IsZero() {
		return sql.NullString{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

// DecodeExtra parses a stored union. NULL or malformed input yields the zero
// union, it is display metadata only.
func DecodeExtra(raw sql.NullString) Extra {
	var e Extra
	if !raw.Valid {
		return e
	}
	if err := json.Unmarshal([]byte(raw.String), &e); err != nil {
		return Extra{}
	}
	return e
}
