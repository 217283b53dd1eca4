// pkg/registry/schema.go
package registry

// Catalog describes the Zeebe job types this service implements, for process
// modellers and for the startup check in worker-manager.
type Catalog struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Workers     []Worker `json:"workers"`
}

type Worker struct {
	TaskType    string   `json:"taskType"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	Inputs      []string `json:"inputs"`
	Outputs     []string `json:"outputs"`
	ErrorCodes  []string `json:"errorCodes"`
	Processes   []string `json:"processes,omitempty"`
}

// Statuses accepted by Validate.
var Statuses = []string{"planned", "in-progress", "completed", "deprecated"}
