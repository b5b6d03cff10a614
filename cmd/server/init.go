package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-assertive/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default configuration and an example expectations directory",
	Long: `Creates the default configuration file (config.yaml) and an expectations directory.

This command will:
  - Create config.yaml with default settings
  - Create expectations/ with an example seed file loaded at startup

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

const exampleExpectations = `# Expectations in this directory are registered when the server starts.
- id: hello
  name: Greeting
  request:
    method: GET
    path: /hello/{name}
  response:
    status: 200
    headers:
      Content-Type: text/plain
    body: "Hello, {name}!"

- id: create-order
  priority: 10
  maxMatches: 1
  request:
    method: POST
    path: /orders
    headers:
      Content-Type:
        operator: startsWith
        value: application/json
    body:
      operator: jsonPath
      key: item
      value: book
  response:
    status: 201
    bodyTemplate: '{"id":"{{random.uuid}}","item":"{{body.item}}","at":"{{timestamp.iso}}"}'
    delay:
      min: 50
      max: 200
`

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	expectationsDir := filepath.Join(absPath, "expectations")

	// Check if config already exists
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	if err := os.MkdirAll(expectationsDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", expectationsDir, err)
	}
	fmt.Printf("Created directory: %s\n", expectationsDir)

	cfg := config.Default()
	cfg.Expectations.Path = "./expectations"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := "# Assertive mock server configuration\n# Every key can be overridden with ASSERTIVE_<SECTION>_<KEY> environment variables\n\n"
	if err := os.WriteFile(configFile, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	// Read it back the way serve will
	if _, err := config.Load(configFile); err != nil {
		return fmt.Errorf("generated config does not load: %w", err)
	}
	fmt.Printf("Created config file: %s\n", configFile)

	exampleFile := filepath.Join(expectationsDir, "example.yaml")
	if _, err := os.Stat(exampleFile); err != nil || initForce {
		if err := os.WriteFile(exampleFile, []byte(exampleExpectations), 0644); err != nil {
			return fmt.Errorf("failed to write example expectations: %w", err)
		}
		fmt.Printf("Created example expectations: %s\n", exampleFile)
	}

	fmt.Println()
	fmt.Println("Initialization complete! You can now start the server with:")
	fmt.Println()
	fmt.Printf("  cd %s\n", absPath)
	fmt.Println("  assertive serve")
	fmt.Println()

	return nil
}
