// Package scopematch implements the Scope Matcher (C6): an ordered list
// of glob-style endpoint patterns, each mapped to the scope required to
// call it. The first matching pattern wins; endpoints matching none
// require no scope at all. Grounded on the original gateway's
// scope_checker.py ENDPOINT_SCOPE_MAP.
package scopematch

import (
	"path"
	"strconv"
	"strings"
)

// Rule binds one endpoint glob pattern to the scope it requires.
type Rule struct {
	Pattern string
	Scope   string
}

// Table is the ordered, first-match-wins endpoint-to-scope mapping. Order
// is significant: more specific patterns must be listed before broader
// ones they would otherwise be shadowed by.
var Table = []Rule{
	{Pattern: "auth/register/*", Scope: "auth:register"},
	{Pattern: "auth/login", Scope: "auth:login"},
	{Pattern: "auth/oauth/*", Scope: "auth:login"},
	{Pattern: "auth/refresh", Scope: "auth:login"},
	{Pattern: "auth/change-password", Scope: "user:write"},
	{Pattern: "users/*/roles/assign", Scope: "role:write"},
	{Pattern: "users/*/roles/*/remove", Scope: "role:write"},
	{Pattern: "users/*/permissions", Scope: "role:read"},
	{Pattern: "users/*/permissions/check", Scope: "role:read"},
	{Pattern: "users/*/roles", Scope: "role:read"},
	{Pattern: "users/*", Scope: "user:read"},
}

func init() {
	if v := Validate(Table); v != nil {
		panic("scopematch: " + v.Error())
	}
}

// Validation is a boot-time error describing a malformed or
// order-violating pattern table.
type Validation struct {
	msg string
}

func (v *Validation) Error() string { return v.msg }

// Validate rejects a table containing an empty pattern or a pattern that
// can never be reached because an earlier, strictly broader pattern
// already matches everything it matches.
func Validate(table []Rule) error {
	for i, rule := range table {
		if strings.TrimSpace(rule.Pattern) == "" {
			return &Validation{msg: "empty endpoint pattern at index " + strconv.Itoa(i)}
		}
		if _, err := path.Match(rule.Pattern, "probe"); err != nil {
			return &Validation{msg: "invalid glob pattern " + rule.Pattern}
		}
		for j := 0; j < i; j++ {
			if ok, _ := path.Match(table[j].Pattern, rule.Pattern); ok {
				return &Validation{msg: "pattern " + rule.Pattern + " at index " + strconv.Itoa(i) + " is shadowed by earlier pattern " + table[j].Pattern}
			}
		}
	}
	return nil
}

// Match returns the scope required for endpoint (the request path with
// leading/trailing slashes and the "/api/v1/gateway/" prefix already
// stripped), and whether any rule matched at all. No match means no
// scope check applies to this endpoint.
func Match(endpoint string) (scope string, required bool) {
	endpoint = strings.Trim(endpoint, "/")
	for _, rule := range Table {
		if ok, _ := path.Match(rule.Pattern, endpoint); ok {
			return rule.Scope, true
		}
	}
	return "", false
}
