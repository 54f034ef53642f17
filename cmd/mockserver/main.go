// Command mockserver serves a local stand-in for the statistics portal's
// easyquery endpoint, backed by small built-in fixtures. It speaks the same
// wire protocol as the real deployment (session cookie on the bootstrap GET,
// form-encoded getTree/QueryData POSTs, an object envelope around the
// payload), so the downloader can be exercised end to end without touching
// the public site.
//
// Usage:
//
//	go run ./cmd/mockserver -addr :8099
//	STATCN_ENDPOINTS=http://localhost:8099 go run ./cmd/statcn trees
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /english/easyquery.htm", handleBoot)
	mux.HandleFunc("POST /easyquery.htm", handleQuery)

	log.Printf("mock easyquery server listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func handleBoot(w http.ResponseWriter, r *http.Request) {
	cn := r.URL.Query().Get("cn")
	if cn == "" {
		http.Error(w, "missing cn", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "mock-" + cn, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintln(w, "<html><body>easyquery</body></html>")
}

func handleQuery(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("JSESSIONID"); err != nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	switch r.PostFormValue("m") {
	case "getTree":
		writeEnvelope(w, treeFixture(r.PostFormValue("wdcode")))
	case "QueryData":
		writeEnvelope(w, queryFixture())
	default:
		http.Error(w, "unknown m", http.StatusNotFound)
	}
}

// writeEnvelope wraps the payload in the object form the real deployment
// uses, exercising the client's alias-key normalization.
func writeEnvelope(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(map[string]any{"returndata": payload}); err != nil {
		log.Printf("write response: %v", err)
	}
}

func treeFixture(wdcode string) any {
	if wdcode == "reg" {
		return []map[string]any{
			{"id": "110000", "name": "北京市", "pid": "reg", "isParent": false},
			{"id": "120000", "name": "天津市", "pid": "reg", "isParent": false},
			{"id": "130000", "name": "河北省", "pid": "reg", "isParent": false},
		}
	}
	return []map[string]any{
		{"id": "A08", "name": "财政", "pid": "zb", "isParent": true},
		{"id": "A0801", "name": "一般公共预算收支", "pid": "A08", "isParent": true},
		{"id": "A080101", "name": "一般公共预算收入", "pid": "A0801", "isParent": false},
		{"id": "A080102", "name": "各项税收", "pid": "A0801", "isParent": false},
	}
}

func queryFixture() any {
	node := func(wds string, value any, hasData bool) map[string]any {
		strdata := ""
		if hasData {
			strdata = fmt.Sprintf("%v", value)
		}
		return map[string]any{
			"wds":  wds,
			"data": map[string]any{"data": value, "hasdata": hasData, "strdata": strdata},
		}
	}
	return map[string]any{
		"datanodes": []map[string]any{
			node("zb.A080101_reg.110000_sj.2019", 5268.0, true),
			node("zb.A080101_reg.110000_sj.2020", 5483.9, true),
			node("zb.A080101_reg.120000_sj.2019", 1521.0, true),
			// Not yet published for this region-year.
			node("zb.A080101_reg.130000_sj.2020", "", false),
		},
		"wdnodes": []map[string]any{
			{"wdcode": "zb", "nodes": []map[string]any{
				{"code": "A080101", "name": "一般公共预算收入"},
			}},
			{"wdcode": "reg", "nodes": []map[string]any{
				{"code": "110000", "name": "北京市"},
				{"code": "120000", "name": "天津市"},
				{"code": "130000", "name": "河北省"},
			}},
			{"wdcode": "sj", "nodes": []map[string]any{
				{"code": "2019", "name": "2019年"},
				{"code": "2020", "name": "2020年"},
			}},
		},
	}
}
