package schema

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/protobuf/jsonpb"
	"github.com/jhump/protoreflect/dynamic"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrSchemaDecode     = errors.New("schema decode error")
)

// ValueField holds the displayable value produced by the heuristic decoder.
const ValueField = "value"

// Fields is a decoded item, field names as rendered by the proto JSON mapping
// (lowerCamelCase), 64 bits integers as strings and other numbers as json.Number.
type Fields map[string]interface{}

var jsonMarshaler = &jsonpb.Marshaler{}

// DecodeBase64 decodes a base64 encoded value, as found in textual captures
// of the stream.
func DecodeBase64(raw string, key string, ref *Ref) (Fields, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}

	return Decode(decoded, key, ref)
}

// Decode turns a raw value into Fields. With a nil ref, it falls back to the
// heuristic decoder which never fails.
func Decode(raw []byte, key string, ref *Ref) (Fields, error) {
	if ref == nil {
		return decodeHeuristic(raw, key), nil
	}

	return ref.Decode(raw)
}

func (r *Ref) Decode(raw []byte) (Fields, error) {
	msg := dynamic.NewMessage(r.descriptor)
	if err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrSchemaDecode, r.TypeName, err)
	}

	content, err := msg.MarshalJSONPB(jsonMarshaler)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: rendering fields: %s", ErrSchemaDecode, r.TypeName, err)
	}

	fields := Fields{}
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %s: reading fields: %s", ErrSchemaDecode, r.TypeName, err)
	}

	return fields, nil
}

// Items splits a decoded map output into its items. Messages exposing a
// repeated `items` field yield one item per element, any other message is a
// single item.
//
// Fields holding their default value are not rendered, so a message with
// only default values decodes to empty Fields and yields no item. Such a
// message has an empty encoding and cannot be told apart from a module
// producing no output for the block.
func Items(fields Fields) []Fields {
	raw, found := fields["items"]
	if !found {
		if len(fields) == 0 {
			return nil
		}
		return []Fields{fields}
	}

	list, ok := raw.([]interface{})
	if !ok {
		return []Fields{fields}
	}

	out := make([]Fields, 0, len(list))
	for _, element := range list {
		if item, ok := element.(map[string]interface{}); ok {
			out = append(out, Fields(item))
			continue
		}
		out = append(out, Fields{ValueField: element})
	}
	return out
}
