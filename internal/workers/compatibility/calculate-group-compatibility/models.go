// internal/workers/compatibility/calculate-group-compatibility/models.go
package calculategroupcompatibility

type Input struct {
	ChatID string `json:"chatId"`
}

type Output struct {
	ChatID       string   `json:"chatId"`
	GroupIntent  string   `json:"groupIntent"`
	OverallScore float64  `json:"overallScore"`
	Outliers     []string `json:"outlierUserIds"`
	TopStrength  string   `json:"topStrength"`
	WatchOuts    string   `json:"watchOuts"`
}

const inputSchema = `{
  "type": "object",
  "required": ["chatId"],
  "properties": {
    "chatId": {"type": "string", "minLength": 1}
  }
}`
