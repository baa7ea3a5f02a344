package types

import (
	"regexp"
	"strings"
	"unicode"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
// for better performance in high-frequency validation scenarios
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentBytes bounds a single message or relayed chat content
const MaxContentBytes = 65536

// IsValidUserID checks if a user ID meets format requirements
// FUNCTIONAL DISCOVERY: UUIDs and legacy numeric ids both fit the 64 character limit
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 64 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValid reports whether the role is one of the three known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalises a claim value into a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// IsValidRoomID checks that a room identifier is non-empty, bounded and printable
// Room ids are opaque; only shape is validated here.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 128 {
		return false
	}
	for _, r := range roomID {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// PersonalRoomPrefix namespaces the per-user notification channel
const PersonalRoomPrefix = "user:"

// PersonalRoom returns the personal channel a connection is auto-subscribed to
func PersonalRoom(userID string) string {
	return PersonalRoomPrefix + userID
}

// IsPersonalRoom reports whether a room id addresses a personal channel
func IsPersonalRoom(roomID string) bool {
	return strings.HasPrefix(roomID, PersonalRoomPrefix)
}

// Validate ensures a caller-supplied message can be appended to a session log
func (m *NewMessage) Validate() error {
	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return ErrInvalidMessageRole
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	if len(m.Content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Validate ensures an answer carries a value
func (a *Answer) Validate() error {
	if strings.TrimSpace(a.Value) == "" {
		return ErrEmptyAnswer
	}
	if len(a.Value) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Items splits the answer value into trimmed, non-empty stated items
// FUNCTIONAL DISCOVERY: "python, sql" states two skills
func (a Answer) Items() []string {
	parts := strings.Split(a.Value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}
