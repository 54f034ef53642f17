package domain

import "regexp"

// SearchTree returns the catalog nodes whose display name matches pattern,
// in tree order. Used to locate series codes by name fragment before the
// exact zb codes are known.
func SearchTree(nodes []TreeNode, pattern string) ([]TreeNode, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	var hits []TreeNode
	for _, node := range nodes {
		if re.MatchString(node.Name) {
			hits = append(hits, node)
		}
	}
	return hits, nil
}
