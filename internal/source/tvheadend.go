package source

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"tvepg/internal/config"
	"tvepg/internal/model"
)

// ErrInvalidPayload is returned when a TVHeadend body is not JSON or holds
// no event list.
var ErrInvalidPayload = errors.New("source: invalid EPG payload")

const tvheadendGridPath = "api/epg/events/grid"

// TVHeadendEndpoint builds the grid endpoint for a configured server.
func TVHeadendEndpoint(c config.TVHeadendConfig) (Endpoint, error) {
	base, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return Endpoint{}, fmt.Errorf("tvheadend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return Endpoint{}, fmt.Errorf("tvheadend url %q: scheme and host are required", c.URL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	u := base.ResolveReference(&url.URL{Path: tvheadendGridPath})
	q := u.Query()
	if c.Limit > 0 {
		q.Set("limit", strconv.Itoa(c.Limit))
	}
	u.RawQuery = q.Encode()

	return Endpoint{
		ID:       "tvheadend",
		URL:      u.String(),
		Username: c.Username,
		Password: c.Password,
	}, nil
}

// DecodeTVHeadend reads a TVHeadend grid response ({"entries": [...]}), the
// Home Assistant integration shape ({"epg": [...]}) or a bare array.
//
// Fields are coerced rather than validated: numbers may arrive as strings,
// genre may be a number, a string or a mixed array, and anything that cannot
// be read becomes a zero value. A single odd record never fails the batch.
func DecodeTVHeadend(body []byte) ([]model.BroadcastEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)

	list := root.Get("entries")
	if !list.Exists() {
		list = root.Get("epg")
	}
	if !list.Exists() && root.IsArray() {
		list = root
	}
	if !list.IsArray() {
		return nil, ErrInvalidPayload
	}

	events := make([]model.BroadcastEvent, 0, len(list.Array()))
	list.ForEach(func(_, entry gjson.Result) bool {
		if entry.IsObject() {
			events = append(events, decodeEntry(entry))
		}
		return true
	})
	return events, nil
}

func decodeEntry(v gjson.Result) model.BroadcastEvent {
	return model.BroadcastEvent{
		EventID:       v.Get("eventId").String(),
		ChannelID:     firstString(v, "channelUuid", "channelId", "channel"),
		ChannelNumber: int(intValue(v.Get("channelNumber"))),
		ChannelName:   v.Get("channelName").String(),
		Start:         epochSeconds(v.Get("start")),
		Stop:          epochSeconds(v.Get("stop")),
		Title:         v.Get("title").String(),
		Description:   firstString(v, "description", "summary", "subtitle"),
		Genre:         decodeGenre(v),
	}
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			return s
		}
	}
	return ""
}

// intValue coerces JSON numbers and numeric strings, truncating fractions.
// Booleans, objects and unparseable strings yield 0.
func intValue(r gjson.Result) int64 {
	switch r.Type {
	case gjson.Number:
		return int64(r.Num)
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
	}
	return 0
}

// epochSeconds is intValue with negatives mapped to 0, the "missing" marker.
func epochSeconds(r gjson.Result) int64 {
	n := intValue(r)
	if n < 0 {
		return 0
	}
	return n
}

// decodeGenre collects the numeric "genre" entries followed by the free-text
// "category" labels TVHeadend attaches from XMLTV.
func decodeGenre(v gjson.Result) model.Genre {
	var g model.Genre
	for _, key := range []string{"genre", "category"} {
		r := v.Get(key)
		switch {
		case !r.Exists() || r.Type == gjson.Null:
		case r.IsArray():
			r.ForEach(func(_, item gjson.Result) bool {
				if s := strings.TrimSpace(item.String()); s != "" {
					g = append(g, s)
				}
				return true
			})
		default:
			if s := strings.TrimSpace(r.String()); s != "" {
				g = append(g, s)
			}
		}
	}
	return g
}
