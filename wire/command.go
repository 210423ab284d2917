package wire

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/query"
)

// Command is one subscribe or unsubscribe request.
type Command struct {
	Database     string     `json:"database"`
	AddTarget    *AddTarget `json:"addTarget,omitempty"`
	RemoveTarget int32      `json:"removeTarget,omitempty"`
}

// AddTarget subscribes a target id to a structured query or a document reference list.
type AddTarget struct {
	Query     *query.Query     `json:"query,omitempty"`
	Documents *query.Documents `json:"documents,omitempty"`
	TargetID  int32            `json:"targetId"`
}

// Subscribe returns the command adding target id for t.
func Subscribe(database string, id int32, t query.Target) Command {
	return Command{
		Database: database,
		AddTarget: &AddTarget{
			Query:     t.Query,
			Documents: t.Documents,
			TargetID:  id,
		},
	}
}

// Unsubscribe returns the command removing target id.
func Unsubscribe(database string, id int32) Command {
	return Command{Database: database, RemoveTarget: id}
}

// Batch is a decoded command POST body.
type Batch struct {
	Offset   int64
	Commands []json.RawMessage
}

// EncodeBatch serializes commands into a single form-encoded POST body.
// offset must be the channel's offset counter value, consumed once per call.
func EncodeBatch(offset int64, commands ...any) ([]byte, error) {
	if len(commands) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "wire", "EncodeBatch", "encode empty batch")
	}

	var b strings.Builder
	b.WriteString("count=")
	b.WriteString(strconv.Itoa(len(commands)))
	b.WriteString("&ofs=")
	b.WriteString(strconv.FormatInt(offset, 10))

	for i, cmd := range commands {
		data, err := json.Marshal(cmd)
		if err != nil {
			return nil, errors.WrapInvalid(err, "wire", "EncodeBatch", "marshal command "+strconv.Itoa(i))
		}
		b.WriteString("&req")
		b.WriteString(strconv.Itoa(i))
		b.WriteString("___data__=")
		b.WriteString(url.QueryEscape(string(data)))
	}
	return []byte(b.String()), nil
}

// DecodeBatch parses a body produced by EncodeBatch.
func DecodeBatch(body []byte) (Batch, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Batch{}, errors.Protocol(err, "wire", "DecodeBatch", "parse form body")
	}

	count, err := strconv.Atoi(values.Get("count"))
	if err != nil || count < 1 {
		return Batch{}, errors.Protocol(nil, "wire", "DecodeBatch", "read count "+strconv.Quote(values.Get("count")))
	}
	offset, err := strconv.ParseInt(values.Get("ofs"), 10, 64)
	if err != nil {
		return Batch{}, errors.Protocol(err, "wire", "DecodeBatch", "read ofs")
	}

	batch := Batch{Offset: offset, Commands: make([]json.RawMessage, 0, count)}
	for i := 0; i < count; i++ {
		key := "req" + strconv.Itoa(i) + "___data__"
		data := values.Get(key)
		if data == "" || !json.Valid([]byte(data)) {
			return Batch{}, errors.Protocol(nil, "wire", "DecodeBatch", "read "+key)
		}
		batch.Commands = append(batch.Commands, json.RawMessage(data))
	}
	return batch, nil
}
