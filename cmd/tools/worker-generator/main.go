// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"roommate-match-workers/pkg/registry"
)

// WorkerData feeds the templates.
type WorkerData struct {
	PackageName string
	Dir         string
	TaskType    string
	DisplayName string
	Inputs      []Field
	Outputs     []Field
}

type Field struct {
	Name    string
	JSONTag string
}

func fields(names []string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{Name: goName(n), JSONTag: n})
	}
	return out
}

// goName turns a JSON name like "chatId" into an exported Go identifier ("ChatID").
func goName(jsonName string) string {
	if jsonName == "" {
		return jsonName
	}
	name := strings.ToUpper(jsonName[:1]) + jsonName[1:]
	if strings.HasSuffix(name, "Id") {
		name = strings.TrimSuffix(name, "Id") + "ID"
	}
	return strings.ReplaceAll(name, "Ids", "IDs")
}

func newWorkerData(w registry.Worker, dir string) WorkerData {
	if dir == "" {
		dir = w.TaskType
	}
	return WorkerData{
		PackageName: strings.ReplaceAll(filepath.Base(dir), "-", ""),
		Dir:         filepath.ToSlash(filepath.Join("internal", "workers", w.Category, dir)),
		TaskType:    w.TaskType,
		DisplayName: w.DisplayName,
		Inputs:      fields(w.Inputs),
		Outputs:     fields(w.Outputs),
	}
}

const configTemplate = `// {{ .Dir }}/config.go
package {{ .PackageName }}

import (
	"time"

	"roommate-match-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{Timeout: timeout}
}
`

const modelsTemplate = `// {{ .Dir }}/models.go
package {{ .PackageName }}

type Input struct {
{{- range .Inputs }}
	{{ .Name }} string ` + "`json:\"{{ .JSONTag }}\"`" + `
{{- end }}
}

type Output struct {
{{- range .Outputs }}
	{{ .Name }} interface{} ` + "`json:\"{{ .JSONTag }}\"`" + `
{{- end }}
}
`

const handlerTemplate = `// {{ .Dir }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "roommate-match-workers/internal/common/errors"
	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/common/metrics"
)

const TaskType = "{{ .TaskType }}"

// Executor performs the {{ .DisplayName }} step.
type Executor interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Handler struct {
	config   *Config
	executor Executor
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, executor Executor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{config: config, executor: executor, errors: apperrors.NewErrorHandler(log), logger: log}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	output, err := h.executor.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
`

var templates = map[string]*template.Template{
	"config.go":  template.Must(template.New("config").Parse(configTemplate)),
	"models.go":  template.Must(template.New("models").Parse(modelsTemplate)),
	"handler.go": template.Must(template.New("handler").Parse(handlerTemplate)),
}

// render returns gofmt-ed sources keyed by file name.
func render(data WorkerData) (map[string][]byte, error) {
	out := make(map[string][]byte, len(templates))
	for name, tmpl := range templates {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		out[name] = src
	}
	return out, nil
}

func main() {
	path := flag.String("registry", registry.DefaultPath, "Path to registry file")
	taskType := flag.String("taskType", "", "Registered task type to scaffold")
	dir := flag.String("dir", "", "Package directory name (defaults to the task type)")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *taskType == "" {
		flag.Usage()
		os.Exit(1)
	}

	catalog, err := registry.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading registry: %v\n", err)
		os.Exit(1)
	}
	w, ok := catalog.Find(*taskType)
	if !ok {
		fmt.Fprintf(os.Stderr, "Task type %s is not registered; add it to %s first\n", *taskType, *path)
		os.Exit(1)
	}

	data := newWorkerData(*w, *dir)
	files, err := render(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(data.Dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", data.Dir, err)
		os.Exit(1)
	}
	for name, src := range files {
		target := filepath.Join(data.Dir, name)
		if _, err := os.Stat(target); err == nil && !*force {
			fmt.Printf("skip %s (exists)\n", target)
			continue
		}
		if err := os.WriteFile(target, src, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", target, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", target)
	}
}
