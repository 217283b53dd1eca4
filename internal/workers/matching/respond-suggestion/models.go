// internal/workers/matching/respond-suggestion/models.go
package respondsuggestion

type Input struct {
	SuggestionID string `json:"suggestionId"`
	UserID       string `json:"userId"`
	Action       string `json:"action"`
}

type Output struct {
	SuggestionID     string `json:"suggestionId"`
	SuggestionStatus string `json:"suggestionStatus"`
	State            string `json:"state"`
	MatchID          string `json:"matchId,omitempty"`
	Matched          bool   `json:"matched"`
}

const inputSchema = `{
  "type": "object",
  "required": ["suggestionId", "userId", "action"],
  "properties": {
    "suggestionId": {"type": "string", "minLength": 1},
    "userId": {"type": "string", "minLength": 1},
    "action": {"type": "string", "enum": ["accept", "decline"]}
  }
}`
