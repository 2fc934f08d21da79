// Package payload defines the Loki JSON push request format:
//
//	{
//	  "streams": [
//	    {
//	      "stream": { "label": "value" },
//	      "values": [
//	        [ "<unix epoch in nanoseconds>", "<log line>" ]
//	      ]
//	    }
//	  ]
//	}
package payload

import (
	"encoding/json"
	"strconv"
	"time"
)

// Entry is one (timestamp, line) pair. The timestamp is unix epoch
// nanoseconds, string-encoded for wire compatibility.
type Entry [2]string

// Stream groups log lines under one label set. The label set determines how
// the backend chunks storage, so keep its cardinality low.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values []Entry           `json:"values"`
}

// PushRequest is the top-level envelope POSTed to /loki/api/v1/push.
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Timestamp formats t as epoch nanoseconds.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// NewStream builds a single-entry stream for one log event. A nil label set
// becomes an empty object; the backend rejects a null stream.
func NewStream(labels map[string]string, ts string, line string) Stream {
	if labels == nil {
		labels = map[string]string{}
	}
	return Stream{
		Stream: labels,
		Values: []Entry{{ts, line}},
	}
}

// Wrap groups streams under one push envelope.
func Wrap(streams []Stream) PushRequest {
	return PushRequest{Streams: streams}
}

// Marshal encodes the request as the wire JSON body.
func (r PushRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
