package pipeline

import "strings"

// FilterConversations returns the conversations matching the query against
// display name, participant identifiers, resolved names and preview text.
// An empty query matches everything.
func FilterConversations(convs []Conversation, query string) []Conversation {
	if query == "" {
		return convs
	}
	q := strings.ToLower(query)
	var out []Conversation
	for _, c := range convs {
		if matchesQuery(c, q) {
			out = append(out, c)
		}
	}
	return out
}

func matchesQuery(c Conversation, q string) bool {
	if strings.Contains(strings.ToLower(c.DisplayName), q) {
		return true
	}
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p), q) {
			return true
		}
	}
	for _, n := range c.ParticipantNames {
		if strings.Contains(strings.ToLower(n), q) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(c.Preview), q)
}
