// Package main provides the rubik solver plugin. It validates the face scans
// collected by the rubik game and hands them to an external solver command,
// returning the solver's move string unchanged.
//
// The solver command is taken from the request config ("command") or from
// the BOARDSIGHT_RUBIK_SOLVER environment variable. It receives one scan per
// line on stdin and prints the solution on stdout, e.g. "U1 R2 F3 (3f)".
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// minScans is the number of scans needed to see all six faces.
const minScans = 6

const solverTimeout = 4 * time.Second

// validStickers are the colour letters a scan may contain.
const validStickers = "RWBGYO"

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Game   string          `json:"game"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SolveParams are the scans of one cube.
type SolveParams struct {
	Scans []string `json:"scans"`
}

// SolveConfig overrides the solver command.
type SolveConfig struct {
	Command []string `json:"command"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "solve":
		solution, err := handleSolve(req)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		writeSuccessResponse(map[string]string{"solution": solution})
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func handleSolve(req Request) (string, error) {
	var p SolveParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return "", fmt.Errorf("failed to parse params: %w", err)
	}
	if err := validateScans(p.Scans); err != nil {
		return "", err
	}

	command, err := solverCommand(req.Config)
	if err != nil {
		return "", err
	}
	return runSolver(command, p.Scans)
}

func validateScans(scans []string) error {
	if len(scans) < minScans {
		return fmt.Errorf("need at least %d scans, got %d", minScans, len(scans))
	}
	for i, scan := range scans {
		if len(scan) != 9 {
			return fmt.Errorf("scan %d: want 9 stickers, got %d", i, len(scan))
		}
		for _, c := range scan {
			if !strings.ContainsRune(validStickers, c) {
				return fmt.Errorf("scan %d: unknown sticker %q", i, c)
			}
		}
	}
	return nil
}

func solverCommand(raw json.RawMessage) ([]string, error) {
	if len(raw) > 0 && string(raw) != "null" {
		var cfg SolveConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if len(cfg.Command) > 0 {
			return cfg.Command, nil
		}
	}

	if env := strings.Fields(os.Getenv("BOARDSIGHT_RUBIK_SOLVER")); len(env) > 0 {
		return env, nil
	}
	return nil, errors.New("no solver command configured (set BOARDSIGHT_RUBIK_SOLVER)")
}

func runSolver(command []string, scans []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), solverTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = strings.NewReader(strings.Join(scans, "\n") + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("solver failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	solution := strings.TrimSpace(stdout.String())
	if solution == "" {
		return "", errors.New("solver returned no output")
	}
	return solution, nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response with data to stdout.
func writeSuccessResponse(data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("failed to encode data: %v", err))
		return
	}
	resp := Response{
		Success: true,
		Data:    raw,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
