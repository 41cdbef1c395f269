package model

import "strings"

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoleList struct {
	Roles []Role `json:"roles"`
}

// NormalizeRoleName produces the canonical (case-folded) form used for
// uniqueness checks and lookups.
func NormalizeRoleName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func equalFold(a string, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
