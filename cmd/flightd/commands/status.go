package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avionyx/flightd/internal/cli/output"
	"github.com/avionyx/flightd/internal/cli/timeutil"
)

var (
	statusPidFile string
	statusAPIPort int
	statusOutput  string
)

// ServerStatus describes the state of a flightd server instance.
type ServerStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show flightd server status",
	Long: `Show whether a flightd server is running and healthy.

Checks the PID file for a running process and queries the HTTP health
endpoint for liveness details.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/flightd/flightd.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "HTTP API port to probe for health")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format: table, json, yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := collectStatus()

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatus(status)
	}

	if !status.Running {
		os.Exit(1)
	}
	return nil
}

func collectStatus() ServerStatus {
	status := ServerStatus{}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		var pid int
		if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if process.Signal(syscall.Signal(0)) == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	if !status.Running {
		status.Message = "flightd is not running"
		return status
	}

	// Probe the health endpoint for liveness detail.
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", statusAPIPort))
	if err != nil {
		status.Message = fmt.Sprintf("process running but health endpoint unreachable: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		status.Message = "process running but health response was unreadable"
		return status
	}

	status.Healthy = resp.StatusCode == http.StatusOK && health["status"] == "ok"
	status.StartedAt = health["started_at"]
	status.Uptime = health["uptime"]
	if !status.Healthy {
		status.Message = "health check failed"
	}
	return status
}

func printStatus(status ServerStatus) {
	if !status.Running {
		fmt.Println("○ flightd is not running")
		return
	}

	marker := "●"
	state := "running"
	if !status.Healthy {
		state = "running (unhealthy)"
	}
	fmt.Printf("%s flightd is %s\n", marker, state)
	fmt.Printf("  PID:        %d\n", status.PID)
	if status.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
	}
	if status.Uptime != "" {
		fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
	}
	if status.Message != "" {
		fmt.Printf("  Note:       %s\n", status.Message)
	}
}
