package domain

import (
	"encoding/json"
	"fmt"
)

// Dimension-node field aliases observed across server variants. Some
// deployments send {"code","name"}, others {"id","cname"}. Checked in order;
// a new variant is a one-line addition.
var (
	dimensionCodeFields = []string{"code", "id"}
	dimensionNameFields = []string{"name", "cname"}
)

// regionDimension is the wdcode of the region axis in query metadata.
const regionDimension = "reg"

// RegionNames builds a region code to display name table from a query
// response's dimension metadata. A node carrying none of the known code or
// name field variants is an explicit error rather than a blank entry. When
// the metadata has no region axis at all the table is nil; callers fall back
// to the region catalog tree.
func RegionNames(wdnodes []WDNode) (map[string]string, error) {
	for _, wd := range wdnodes {
		if wd.WDCode != regionDimension {
			continue
		}

		names := make(map[string]string, len(wd.Nodes))
		for i, raw := range wd.Nodes {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("%w: region node %d is not an object: %v", ErrBadShape, i, err)
			}
			code, err := pickString(fields, dimensionCodeFields)
			if err != nil {
				return nil, fmt.Errorf("%w: region node %d code: %v", ErrBadShape, i, err)
			}
			name, err := pickString(fields, dimensionNameFields)
			if err != nil {
				return nil, fmt.Errorf("%w: region node %d name: %v", ErrBadShape, i, err)
			}
			names[code] = name
		}
		return names, nil
	}
	return nil, nil
}

// TreeNames builds the same table from a region catalog tree. Used when the
// query metadata carries no region axis.
func TreeNames(nodes []TreeNode) map[string]string {
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}
	return names
}

// pickString returns the first alias present in fields holding a JSON string.
func pickString(fields map[string]json.RawMessage, aliases []string) (string, error) {
	for _, alias := range aliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
	}
	return "", fmt.Errorf("none of %v present, keys=%v", aliases, sortedKeys(fields))
}
