package domain

import (
	"regexp"
	"strconv"
)

var (
	// wdsIndicatorRe extracts the indicator code from a composite wds
	// string: "zb.A0101_reg.110000_sj.2019" -> "A0101".
	wdsIndicatorRe = regexp.MustCompile(`zb\.([^_]+)`)

	// wdsRegionRe extracts the region code: "reg.110000" -> "110000".
	wdsRegionRe = regexp.MustCompile(`reg\.([^_]+)`)

	// wdsPeriodRe extracts the four-digit year: "sj.2019" -> "2019".
	wdsPeriodRe = regexp.MustCompile(`sj\.(\d{4})`)
)

// DecodeDataNode turns a raw data node into an Observation. The second
// return is false when the wds string lacks a region or year component;
// such nodes cannot be keyed into a panel and must be dropped. A missing
// indicator component is tolerated and leaves Zb empty.
func DecodeDataNode(node DataNode) (Observation, bool) {
	reg, okReg := firstGroup(wdsRegionRe, node.WDS)
	yearStr, okYear := firstGroup(wdsPeriodRe, node.WDS)
	if !okReg || !okYear {
		return Observation{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Observation{}, false
	}

	zb, _ := firstGroup(wdsIndicatorRe, node.WDS)
	return Observation{
		Reg:   reg,
		Year:  year,
		Value: node.Data.Value(),
		Zb:    zb,
	}, true
}

// DecodeDataNodes decodes a node sequence, returning the observations and
// the number of nodes dropped for undecodable wds strings.
func DecodeDataNodes(nodes []DataNode) ([]Observation, int) {
	observations := make([]Observation, 0, len(nodes))
	dropped := 0
	for _, node := range nodes {
		obs, ok := DecodeDataNode(node)
		if !ok {
			dropped++
			continue
		}
		observations = append(observations, obs)
	}
	return observations, dropped
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}
