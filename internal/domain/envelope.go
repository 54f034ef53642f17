package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrBadShape marks a response that parsed as JSON but does not match
	// any known envelope or payload layout.
	ErrBadShape = errors.New("unexpected response shape")

	// ErrIncomplete marks a recognized envelope whose payload lacks a
	// required nested field.
	ErrIncomplete = errors.New("payload structurally incomplete")

	// ErrEmpty marks a well-formed response that yielded zero rows.
	ErrEmpty = errors.New("empty result")
)

// payloadKeys lists the envelope fields observed to wrap the actual payload
// across server variants, in probe order. "returndata" is the canonical name;
// the rest have been seen on older deployments. Supporting a newly observed
// variant is a one-line addition here.
var payloadKeys = []string{"returndata", "data", "result", "datas"}

// ExtractPayload resolves the payload collection from a raw easyquery
// response body. A JSON array is the payload itself; an object yields the
// value of the first recognized payload key. Anything else is ErrBadShape,
// with the observed keys or top-level token in the message.
func ExtractPayload(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBadShape)
	}

	switch trimmed[0] {
	case '[':
		var seq json.RawMessage
		if err := json.Unmarshal(trimmed, &seq); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON array: %v", ErrBadShape, err)
		}
		return seq, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON object: %v", ErrBadShape, err)
		}
		for _, key := range payloadKeys {
			if payload, ok := envelope[key]; ok {
				return payload, nil
			}
		}
		return nil, fmt.Errorf("%w: object has no payload field, keys=%v", ErrBadShape, sortedKeys(envelope))
	default:
		return nil, fmt.Errorf("%w: top-level value is neither array nor object", ErrBadShape)
	}
}

// DecodeTree normalizes a getTree response body into catalog nodes.
func DecodeTree(body []byte) ([]TreeNode, error) {
	payload, err := ExtractPayload(body)
	if err != nil {
		return nil, err
	}
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return nil, fmt.Errorf("%w: payload is not a node array: %v", ErrBadShape, err)
	}
	return nodes, nil
}

// QueryPayload is the payload block of a QueryData response.
type QueryPayload struct {
	DataNodes []DataNode `json:"datanodes"`
	WDNodes   []WDNode   `json:"wdnodes"`
}

// WDNode describes one dimension axis in the query metadata. Node fields
// vary across server variants, so they stay raw until resolved by
// [RegionNames].
type WDNode struct {
	WDCode string            `json:"wdcode"`
	Nodes  []json.RawMessage `json:"nodes"`
}

// DecodeQuery normalizes a QueryData response body. A recognized envelope
// whose payload has no datanodes field is reported as ErrIncomplete, distinct
// from a response with no recognizable envelope at all.
func DecodeQuery(body []byte) (QueryPayload, error) {
	payload, err := ExtractPayload(body)
	if err != nil {
		return QueryPayload{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return QueryPayload{}, fmt.Errorf("%w: payload is not an object: %v", ErrBadShape, err)
	}
	if _, ok := fields["datanodes"]; !ok {
		return QueryPayload{}, fmt.Errorf("%w: no datanodes, payload keys=%v", ErrIncomplete, sortedKeys(fields))
	}

	var qp QueryPayload
	if err := json.Unmarshal(payload, &qp); err != nil {
		return QueryPayload{}, fmt.Errorf("%w: %v", ErrBadShape, err)
	}
	return qp, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
