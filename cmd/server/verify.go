package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-assertive/internal/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify how often a running server received matching requests",
	Long: `Sends a verification query to a running server's admin API and prints
whether the count constraint holds. The command exits non-zero when it does not.

The query is built from flags, or read from a JSON/YAML file with --file:

  assertive verify --method POST --path /orders --exactly 2
  assertive verify --file checks/orders.yaml`,
	RunE: runVerify,
}

var (
	verifyURL     string
	verifyPrefix  string
	verifyFile    string
	verifyMethod  string
	verifyPath    string
	verifyExactly int
	verifyAtLeast int
	verifyAtMost  int
)

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func init() {
	verifyCmd.Flags().StringVarP(&verifyURL, "url", "u", "http://localhost:8080", "Base URL of the running server")
	verifyCmd.Flags().StringVar(&verifyPrefix, "prefix", "/__mock__", "Admin API prefix")
	verifyCmd.Flags().StringVarP(&verifyFile, "file", "f", "", "Verification query file (JSON or YAML)")
	verifyCmd.Flags().StringVarP(&verifyMethod, "method", "X", "", "Request method to match")
	verifyCmd.Flags().StringVar(&verifyPath, "path", "", "Request path to match, {name} segments allowed")
	verifyCmd.Flags().IntVar(&verifyExactly, "exactly", -1, "Expect exactly N requests")
	verifyCmd.Flags().IntVar(&verifyAtLeast, "at-least", -1, "Expect at least N requests")
	verifyCmd.Flags().IntVar(&verifyAtMost, "at-most", -1, "Expect at most N requests")
}

func runVerify(cmd *cobra.Command, args []string) error {
	input, err := verificationInput()
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	endpoint := strings.TrimSuffix(verifyURL, "/") + "/" + strings.Trim(verifyPrefix, "/") + "/verify"

	result, err := postVerification(client, endpoint, input)
	if err != nil {
		return err
	}

	printVerification(cmd.OutOrStdout(), result)
	if !result.Satisfied {
		return fmt.Errorf("verification failed")
	}
	return nil
}

// verificationInput builds the query from --file or from the matcher flags
func verificationInput() (*models.VerificationInput, error) {
	if verifyFile != "" {
		data, err := os.ReadFile(verifyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", verifyFile, err)
		}
		return decodeVerification(data)
	}

	input := &models.VerificationInput{}
	if verifyMethod != "" {
		input.Request.Method = &models.Matcher{Value: strings.ToUpper(verifyMethod)}
	}
	if verifyPath != "" {
		input.Request.Path = &models.Matcher{Value: verifyPath}
	}

	var times models.TimesInput
	set := false
	if verifyExactly >= 0 {
		times.Exactly = &verifyExactly
		set = true
	}
	if verifyAtLeast >= 0 {
		times.AtLeast = &verifyAtLeast
		set = true
	}
	if verifyAtMost >= 0 {
		times.AtMost = &verifyAtMost
		set = true
	}
	if set {
		input.Times = &times
	}

	return input, nil
}

// decodeVerification accepts JSON or YAML
func decodeVerification(data []byte) (*models.VerificationInput, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid verification query: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("invalid verification query: %w", err)
		}
		data = converted
	}

	var input models.VerificationInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("invalid verification query: %w", err)
	}
	return &input, nil
}

// postVerification sends the query and decodes the server's result
func postVerification(client *http.Client, endpoint string, input *models.VerificationInput) (*models.VerificationResult, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server rejected query (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var result models.VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

func printVerification(w io.Writer, result *models.VerificationResult) {
	if result.Satisfied {
		passColor.Fprint(w, "PASS ")
	} else {
		failColor.Fprint(w, "FAIL ")
	}
	fmt.Fprintln(w, result.Message)

	for _, rec := range result.MatchedRecords {
		dimColor.Fprintf(w, "  #%d %s %s %s\n", rec.Seq, rec.Timestamp.Format(time.RFC3339), rec.Method, rec.Path)
	}
}
