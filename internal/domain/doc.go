// Package domain models the data served by the National Bureau of Statistics
// easyquery AJAX API (data.stats.gov.cn/easyquery.htm).
//
// # Catalogs
//
// The portal organizes each database as two trees keyed by opaque string
// codes: the indicator catalog (dimension "zb") and the region catalog
// (dimension "reg"). Internal nodes are categories, leaves are queryable
// series. Both are fetched with the getTree operation.
//
// # Envelopes
//
// Responses wrap the payload in one of several envelope shapes depending on
// the deployment and operation: a bare JSON array, or an object whose payload
// sits under "returndata" (canonical) or, on some server variants, "data",
// "result" or "datas". [ExtractPayload] resolves all of them from a single
// declared alias list.
//
// # Composite dimension codes
//
// QueryData identifies each cell by a composite "wds" string that joins the
// dimension memberships, for example:
//
//	zb.A0101_reg.110000_sj.2019
//
// meaning indicator A0101, region 110000 (Beijing), period 2019. The year is
// always the four digits after "sj.". Nodes whose wds lacks a region or year
// component cannot be placed in a panel and are dropped.
//
// # Values
//
// The value cell arrives as a number, a numeric string, an empty string, or
// null. Empty and null both mean "no observation" and decode to nil, never
// to zero: a zero revenue figure and a missing one are different facts.
//
// # Panels
//
// A panel has one row per (region, year) and one column per requested
// indicator. Series are outer-joined so a region-year covered by only some
// indicators still appears, with nils in the uncovered columns.
package domain
