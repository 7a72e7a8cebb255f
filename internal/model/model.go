package model

// BroadcastEvent is a single program entry as delivered by an EPG source.
// Times are epoch seconds; a zero Start or Stop means the source did not
// provide a usable value. Events are treated as immutable once decoded.
type BroadcastEvent struct {
	EventID string `json:"event_id,omitempty"`

	// ChannelID is the grouping key. ChannelNumber and ChannelName are
	// display metadata and may disagree between events of the same channel.
	ChannelID     string `json:"channel_id"`
	ChannelNumber int    `json:"channel_number"`
	ChannelName   string `json:"channel_name"`

	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Genre Genre `json:"genre,omitempty"`
}

// HasStart reports whether the event carries a start time.
func (e BroadcastEvent) HasStart() bool { return e.Start > 0 }

// HasStop reports whether the event carries a stop time.
func (e BroadcastEvent) HasStop() bool { return e.Stop > 0 }

// Duration returns stop - start in seconds. It is zero when either end is
// missing and may be negative for inverted upstream data.
func (e BroadcastEvent) Duration() int64 {
	if !e.HasStart() || !e.HasStop() {
		return 0
	}
	return e.Stop - e.Start
}

// Genre holds the raw genre entries of an event in source order. Each entry
// is either the textual form of a numeric classification code ("64",
// "0x40") or a free-text label ("Sport").
type Genre []string

// Empty reports whether no genre information is present.
func (g Genre) Empty() bool {
	for _, v := range g {
		if v != "" {
			return false
		}
	}
	return true
}
