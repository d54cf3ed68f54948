package platform

import "log/slog"

// Session carries the correlation tokens for one platform crawl attempt:
// the search-wide execution id and the per-attempt session id. It holds no
// business data and exists only for observability.
type Session struct {
	ExecutionID   string
	SessionID     string
	OriginalQuery string
	Attempt       int
}

// Logger returns a slog logger tagged with the session's correlation ids.
func (s *Session) Logger(platform string) *slog.Logger {
	if s == nil {
		return slog.Default().With("platform", platform)
	}
	return slog.Default().With(
		"platform", platform,
		"execution_id", s.ExecutionID,
		"session_id", s.SessionID,
		"attempt", s.Attempt,
	)
}
