package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// maxAgentNameLength bounds the self-asserted agent identifier accepted on
// the command line, mirroring the session name length cap so one agent
// cannot starve the audit log with pathological identifiers.
const maxAgentNameLength = 63

// resolveAgentName resolves the agent identity used for lock and queue
// attribution. Precedence: per-command flag (if given), global --agent flag,
// ZJJ_AGENT environment variable.
func resolveAgentName(cmd *cobra.Command, perCmdFlag string) string {
	raw := ""
	if perCmdFlag != "" {
		if v, err := cmd.Flags().GetString(perCmdFlag); err == nil && v != "" {
			raw = v
		}
	}
	if raw == "" {
		if v, err := cmd.Flags().GetString("agent"); err == nil && v != "" {
			raw = v
		}
	}
	if raw == "" {
		raw = os.Getenv("ZJJ_AGENT")
	}
	return strings.TrimSpace(raw)
}

func requireAgentName(cmd *cobra.Command, perCmdFlag string) (string, error) {
	agent := resolveAgentName(cmd, perCmdFlag)
	if agent == "" {
		return "", errors.New("agent is required (set --agent or ZJJ_AGENT)")
	}
	if len(agent) > maxAgentNameLength {
		return "", fmt.Errorf("agent name exceeds maximum length (%d chars)", maxAgentNameLength)
	}
	return agent, nil
}
