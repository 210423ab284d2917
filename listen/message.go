package listen

import (
	"encoding/json"
	"math"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/wire"
)

// Kind discriminates the message variants.
type Kind int

const (
	// KindOther is any content not matching a known shape
	KindOther Kind = iota
	// KindTargetChange is an ADD, REMOVE or CURRENT lifecycle change
	KindTargetChange
	// KindDocumentChange carries a document for one or more targets
	KindDocumentChange
)

// String returns the metric label of the kind
func (k Kind) String() string {
	switch k {
	case KindTargetChange:
		return "target_change"
	case KindDocumentChange:
		return "document_change"
	default:
		return "other"
	}
}

// ChangeType is the subtype of a target change.
type ChangeType string

// Target change subtypes
const (
	ChangeAdd     ChangeType = "ADD"
	ChangeRemove  ChangeType = "REMOVE"
	ChangeCurrent ChangeType = "CURRENT"
)

// Message is one decoded stream frame.
type Message struct {
	Seq  int64
	Kind Kind

	// TargetIDs lists the targets the message belongs to, first one first.
	TargetIDs []int32

	// Change is set for KindTargetChange.
	Change ChangeType

	// Document is the document object of a KindDocumentChange.
	Document json.RawMessage

	// Payload holds the frame content unchanged.
	Payload []json.RawMessage
}

// TargetID returns the first target id, or 0 when the message has none.
func (m Message) TargetID() int32 {
	if len(m.TargetIDs) == 0 {
		return 0
	}
	return m.TargetIDs[0]
}

// HasTarget reports whether the message belongs to target id.
func (m Message) HasTarget(id int32) bool {
	for _, t := range m.TargetIDs {
		if t == id {
			return true
		}
	}
	return false
}

// Ends reports whether the message closes a target's burst.
func (m Message) Ends() bool {
	return m.Kind == KindTargetChange && (m.Change == ChangeCurrent || m.Change == ChangeRemove)
}

// Reference is the acknowledgement of a subscribe command.
type Reference struct {
	TargetID int32
	Seq      int64
}

type envelope struct {
	TargetChange *struct {
		Type      ChangeType `json:"targetChangeType"`
		TargetIDs []int32    `json:"targetIds"`
	} `json:"targetChange"`
	DocumentChange *struct {
		Document  json.RawMessage `json:"document"`
		TargetIDs []int32         `json:"targetIds"`
	} `json:"documentChange"`
}

// Classify turns a frame into a Message. The discriminator is the key present in the
// first content object; anything else is KindOther with a best-effort target id.
func Classify(f wire.Frame) Message {
	msg := Message{Seq: f.Seq, Kind: KindOther, Payload: f.Payload}
	if len(f.Payload) == 0 {
		return msg
	}

	var env envelope
	if err := json.Unmarshal(f.Payload[0], &env); err == nil {
		switch {
		case env.TargetChange != nil:
			switch env.TargetChange.Type {
			case ChangeAdd, ChangeRemove, ChangeCurrent:
				if len(env.TargetChange.TargetIDs) > 0 {
					msg.Kind = KindTargetChange
					msg.Change = env.TargetChange.Type
					msg.TargetIDs = env.TargetChange.TargetIDs
					return msg
				}
			}
		case env.DocumentChange != nil && len(env.DocumentChange.Document) > 0:
			msg.Kind = KindDocumentChange
			msg.Document = env.DocumentChange.Document
			msg.TargetIDs = env.DocumentChange.TargetIDs
			return msg
		}
	}

	msg.TargetIDs = scanTargetIDs(f.Payload)
	return msg
}

// scanTargetIDs looks for the first "targetIds" list, or failing that a "targetId"
// number, anywhere in the content.
func scanTargetIDs(payload []json.RawMessage) []int32 {
	var scalar []int32
	for _, raw := range payload {
		var v any
		if json.Unmarshal(raw, &v) != nil {
			continue
		}
		if ids, ok := findTargetIDs(v, &scalar); ok {
			return ids
		}
	}
	return scalar
}

func findTargetIDs(v any, scalar *[]int32) ([]int32, bool) {
	switch node := v.(type) {
	case map[string]any:
		if list, ok := node["targetIds"].([]any); ok {
			ids := make([]int32, 0, len(list))
			for _, item := range list {
				if id, ok := asTargetID(item); ok {
					ids = append(ids, id)
				}
			}
			if len(ids) > 0 {
				return ids, true
			}
		}
		if id, ok := asTargetID(node["targetId"]); ok && *scalar == nil {
			*scalar = []int32{id}
		}
		for _, child := range node {
			if ids, ok := findTargetIDs(child, scalar); ok {
				return ids, true
			}
		}
	case []any:
		for _, child := range node {
			if ids, ok := findTargetIDs(child, scalar); ok {
				return ids, true
			}
		}
	}
	return nil, false
}

// asTargetID accepts only whole JSON numbers that fit an int32.
func asTargetID(v any) (int32, bool) {
	n, ok := v.(float64)
	if !ok || n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}
