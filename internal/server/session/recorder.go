package session

// Recorder receives session lifecycle events, typically to update metrics.
type Recorder interface {
	SessionIssued()
	SessionRotated()
	SessionEnded()
	// TokenVerified records a verify outcome: "ok", "invalid", "revoked" or "error"
	TokenVerified(kind, outcome string)
	// RevokeFinished records a background revoke outcome: "ok", "not_found",
	// "error" or "dropped"
	RevokeFinished(outcome string)
	SetRevokeQueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionIssued()            {}
func (nopRecorder) SessionRotated()           {}
func (nopRecorder) SessionEnded()             {}
func (nopRecorder) TokenVerified(_, _ string) {}
func (nopRecorder) RevokeFinished(_ string)   {}
func (nopRecorder) SetRevokeQueueDepth(_ int) {}
