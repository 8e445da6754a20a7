package conversation

// Turn is one message in a client session, ordered oldest first.
type Turn struct {
	Role    string `json:"role" description:"user or assistant"`
	Content string `json:"content"`
}

// Cap returns the most recent n turns. Older turns are dropped, not
// summarized.
func Cap(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
