// Package ros holds the ROS message types the localization task exchanges, the bus they travel
// on, and the rosbag reader that replays recorded runs onto that bus.
package ros

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/turtlelab/localize/logging"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

func timeFilter(startTime, endTime int64) func(int64) bool {
	if startTime == 0 || endTime == 0 {
		return func(int64) bool { return true }
	}
	return func(timestamp int64) bool {
		return timestamp >= startTime && timestamp <= endTime
	}
}

func topicFilter(topics []string) func(string) bool {
	if len(topics) == 0 {
		return func(string) bool { return true }
	}
	topicsFilterMap := make(map[string]bool)
	for _, topic := range topics {
		topicsFilterMap[topic] = true
	}
	return func(topic string) bool {
		return topicsFilterMap[topic]
	}
}

// WriteTopicsJSON parses the messages of a rosbag into per-topic JSON lines, filtered by time
// (seconds, 0 meaning unbounded) and topic, and writes them to w.
func WriteTopicsJSON(rb *rosbag.RosBag, w io.Writer, startTime, endTime int64, topicsFilter []string) error {
	if err := rb.ParseTopicsToJSON("", timeFilter(startTime, endTime), topicFilter(topicsFilter), true); err != nil {
		return errors.Wrapf(err, "error while parsing bag to JSON")
	}

	keys := make([]string, 0, len(rb.TopicsAsJSON))
	for key := range rb.TopicsAsJSON {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := rb.TopicsAsJSON[key].WriteTo(w); err != nil {
			return errors.Wrapf(err, "writing topic %s", key)
		}
	}
	return nil
}

// nonFinite matches bare Inf and NaN literals, which are not valid JSON.
var nonFinite = regexp.MustCompile(`([:\[,]\s*)([+-]?Inf|NaN)\b`)

func sanitizeNonFinite(line []byte) []byte {
	return nonFinite.ReplaceAll(line, []byte(`$1"$2"`))
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	lines, err := topicLines(rb, topic)
	if err != nil {
		return nil, err
	}

	all := make([]map[string]interface{}, 0, len(lines))
	for _, data := range lines {
		message := map[string]interface{}{}
		if err := json.Unmarshal(data, &message); err != nil {
			return nil, err
		}
		all = append(all, message)
	}

	return all, nil
}

func topicLines(rb *rosbag.RosBag, topic string) ([][]byte, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[TopicKey(topic)]
	if msgs == nil {
		return nil, errors.Wrapf(ErrNoMessage, "no messages for topic %s", topic)
	}

	var lines [][]byte
	for {
		data, err := msgs.ReadBytes('\n')
		if len(data) > 0 {
			lines = append(lines, sanitizeNonFinite(data))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return lines, nil
}

// Record is one decoded bag message.
type Record struct {
	Topic string
	Stamp time.Time
	Msg   interface{}
}

type envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// DecodeRecord decodes one gobag JSON line into the message type registered for topic in
// TopicTypes.
func DecodeRecord(topic string, line []byte) (Record, error) {
	typ, ok := TopicTypes[topic]
	if !ok {
		return Record{}, errors.Errorf("no message type registered for topic %s", topic)
	}
	var env envelope
	if err := json.Unmarshal(sanitizeNonFinite(line), &env); err != nil {
		return Record{}, errors.Wrapf(err, "decoding %s record", topic)
	}
	msg := reflect.New(typ)
	if err := json.Unmarshal(env.Data, msg.Interface()); err != nil {
		return Record{}, errors.Wrapf(err, "decoding %s message", topic)
	}
	return Record{
		Topic: topic,
		Stamp: time.Unix(int64(env.Meta.Secs), int64(env.Meta.Nsecs)),
		Msg:   msg.Elem().Interface(),
	}, nil
}

// ReadRecords decodes every message of the given topics in the bag, ordered by record time.
// Topics missing from the bag are skipped.
func ReadRecords(rb *rosbag.RosBag, topics []string) ([]Record, error) {
	var records []Record
	for _, topic := range topics {
		lines, err := topicLines(rb, topic)
		if errors.Is(err, ErrNoMessage) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			rec, err := DecodeRecord(topic, line)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Stamp.Before(records[j].Stamp)
	})
	return records, nil
}

// Replay publishes records onto bus in order. speed scales the recorded inter-message gaps; a
// speed of zero or less publishes as fast as possible.
func Replay(ctx context.Context, bus Bus, records []Record, speed float64, logger logging.Logger) error {
	publishers := map[string]Publisher{}
	var prev time.Time
	for i, rec := range records {
		if speed > 0 && i > 0 {
			gap := time.Duration(float64(rec.Stamp.Sub(prev)) / speed)
			if gap > 0 && !utils.SelectContextOrWait(ctx, gap) {
				return ctx.Err()
			}
		}
		prev = rec.Stamp

		pub, ok := publishers[rec.Topic]
		if !ok {
			pub = bus.Publisher(rec.Topic)
			publishers[rec.Topic] = pub
		}
		if err := pub.Publish(ctx, rec.Msg); err != nil {
			return errors.Wrapf(err, "replaying %s", rec.Topic)
		}
	}
	logger.Debugw("replay finished", "messages", len(records))
	return nil
}
