// cmd/tools/worker-registry/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"roommate-match-workers/pkg/registry"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)

	var path string
	for _, fs := range []*flag.FlagSet{listCmd, validateCmd, statusCmd} {
		fs.StringVar(&path, "path", registry.DefaultPath, "Path to registry file")
	}
	taskType := statusCmd.String("taskType", "", "Task type to update")
	status := statusCmd.String("value", "", "New status ("+strings.Join(registry.Statuses, ", ")+")")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		err = list(path)
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validate(path)
	case "status":
		statusCmd.Parse(os.Args[2:])
		if *taskType == "" || *status == "" {
			statusCmd.Usage()
			os.Exit(1)
		}
		err = setStatus(path, *taskType, *status)
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func list(path string) error {
	c, err := registry.Load(path)
	if err != nil {
		return err
	}
	for _, w := range c.Workers {
		fmt.Printf("%-32s %-14s %-12s %s\n", w.TaskType, w.Category, w.Status, w.DisplayName)
	}
	return nil
}

func validate(path string) error {
	c, err := registry.Load(path)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	fmt.Printf("Registry validation passed. Found %d workers.\n", len(c.Workers))
	return nil
}

func setStatus(path, taskType, status string) error {
	c, err := registry.Load(path)
	if err != nil {
		return err
	}
	if err := c.SetStatus(taskType, status); err != nil {
		return err
	}
	if err := c.Save(path, time.Now()); err != nil {
		return err
	}
	fmt.Printf("Updated %s to %s\n", taskType, status)
	return nil
}

func help() {
	fmt.Println(`
Usage: worker-registry <command> [flags]

Commands:
  list      Print the registered job types
  validate  Validate the registry file
  status    Change a job type's status

Examples:
  worker-registry list
  worker-registry status -taskType match-suggestion-respond -value deprecated
  worker-registry validate -path configs/worker-registry.json`)
}
