package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"tvepg/internal/model"
)

// Export renders events as an iCalendar feed so the guide can be subscribed
// to from a calendar client. Events without a start time are skipped; a
// missing or inverted stop is exported as a zero-length event.
func Export(events []model.BroadcastEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//tvepg//EPG export//EN")
	cal.SetXWRCalName("TV guide")

	for _, e := range events {
		if !e.HasStart() {
			continue
		}
		start := time.Unix(e.Start, 0).UTC()
		end := start
		if e.HasStop() && e.Stop > e.Start {
			end = time.Unix(e.Stop, 0).UTC()
		}

		ve := cal.AddEvent(exportUID(e))
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(start)
		ve.SetEndAt(end)
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetLocation(channelLabel(e))
		if !e.Genre.Empty() {
			ve.SetProperty(ical.ComponentPropertyCategories, strings.Join(nonEmpty(e.Genre), ","))
		}
	}

	return cal.Serialize()
}

func exportUID(e model.BroadcastEvent) string {
	if e.EventID != "" {
		return e.EventID + "@tvepg"
	}
	return e.ChannelID + "-" + time.Unix(e.Start, 0).UTC().Format("20060102T150405Z") + "@tvepg"
}

func channelLabel(e model.BroadcastEvent) string {
	if e.ChannelName == "" {
		return e.ChannelID
	}
	return e.ChannelName
}

func nonEmpty(g model.Genre) []string {
	out := make([]string, 0, len(g))
	for _, v := range g {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
