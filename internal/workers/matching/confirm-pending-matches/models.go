// internal/workers/matching/confirm-pending-matches/models.go
package confirmpendingmatches

// Output mirrors the sweep summary so the timer process can branch on it.
type Output struct {
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	TotalPairs int      `json:"totalPairs"`
	Errors     []string `json:"sweepErrors"`
	ErrorCount int      `json:"errorCount"`
	HasErrors  bool     `json:"hasErrors"`
}
