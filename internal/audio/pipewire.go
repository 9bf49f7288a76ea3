package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// PipeWire queries the PipeWire graph through pw-link.
type PipeWire struct{}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{}
}

// ListPorts returns all input and output ports known to PipeWire
func (pw *PipeWire) ListPorts() ([]string, error) {
	output, err := exec.Command("pw-link", "-io").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePortList(string(output)), nil
}

func parsePortList(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// ValidatePort checks that a port exists exactly once
func (pw *PipeWire) ValidatePort(portName string) error {
	if portName == "" {
		return nil
	}

	ports, err := pw.ListPorts()
	if err != nil {
		slog.Debug("Failed to check port existence", "port", portName, "error", err)
		return fmt.Errorf("failed to list ports: %w", err)
	}
	return validatePortIn(portName, ports)
}

func validatePortIn(portName string, ports []string) error {
	duplicates := findPortDuplicatesInList(portName, ports)
	switch {
	case len(duplicates) == 0:
		return fmt.Errorf("port not found: %s", portName)
	case len(duplicates) > 1:
		return fmt.Errorf("duplicate ports detected for '%s': %v. Please close conflicting applications", portName, duplicates)
	}
	return nil
}

// findPortDuplicatesInList finds all ports with exactly the same name
func findPortDuplicatesInList(portName string, ports []string) []string {
	var duplicates []string
	for _, port := range ports {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}
