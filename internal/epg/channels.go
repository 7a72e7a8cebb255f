package epg

import (
	"sort"

	"tvepg/internal/model"
)

// Channel is a row of the guide. Events keep their input order.
type Channel struct {
	ID     string
	Number int
	Name   string
	Events []model.BroadcastEvent
}

// GroupChannels partitions events by ChannelID. The first event seen for an
// id decides the channel's number and name; metadata on later events is not
// checked. The result is stably sorted by number, so ties keep first-seen
// order.
func GroupChannels(events []model.BroadcastEvent) []Channel {
	index := make(map[string]int)
	channels := make([]Channel, 0)

	for _, e := range events {
		i, ok := index[e.ChannelID]
		if !ok {
			i = len(channels)
			index[e.ChannelID] = i
			channels = append(channels, Channel{
				ID:     e.ChannelID,
				Number: e.ChannelNumber,
				Name:   e.ChannelName,
			})
		}
		channels[i].Events = append(channels[i].Events, e)
	}

	sort.SliceStable(channels, func(a, b int) bool {
		return channels[a].Number < channels[b].Number
	})
	return channels
}
