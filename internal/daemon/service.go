package daemon

import (
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/DavidIlie/claude-code-prometheus/internal/config"
)

const (
	launchdLabel = "com.davidilie.ccp-agent"
	systemdUnit  = "ccp-agent.service"
)

// ServiceManager installs the agent as a user-level service so it
// starts at login and survives reboots.
type ServiceManager struct {
	kind     string
	exePath  string
	unitPath string
	paths    config.Paths
}

// NewServiceManager resolves the current executable and the per-OS
// unit file location.
func NewServiceManager(paths config.Paths) (*ServiceManager, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving executable path: %w", err)
	}
	m := &ServiceManager{kind: runtime.GOOS, exePath: exePath, paths: paths}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home dir: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		m.unitPath = filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
	case "linux":
		m.unitPath = filepath.Join(home, ".config", "systemd", "user", systemdUnit)
	default:
		m.kind = "unsupported"
	}
	return m, nil
}

// IsSupported reports whether a service manager exists for this OS.
func (m *ServiceManager) IsSupported() bool {
	return m.kind == "darwin" || m.kind == "linux"
}

// IsInstalled reports whether the unit file is present.
func (m *ServiceManager) IsInstalled() bool {
	if m.unitPath == "" {
		return false
	}
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// Description names the installed unit for user-facing output.
func (m *ServiceManager) Description() string {
	switch m.kind {
	case "darwin":
		return "launchd agent " + launchdLabel
	case "linux":
		return "systemd user unit " + systemdUnit
	default:
		return "unsupported"
	}
}

// Hint returns the native command for checking the service.
func (m *ServiceManager) Hint() string {
	switch m.kind {
	case "darwin":
		return "launchctl print gui/$(id -u)/" + launchdLabel
	case "linux":
		return "systemctl --user status " + systemdUnit
	default:
		return ""
	}
}

// Install writes the unit file and starts the service.
func (m *ServiceManager) Install() error {
	switch m.kind {
	case "darwin":
		return m.installLaunchd()
	case "linux":
		return m.installSystemd()
	default:
		return fmt.Errorf("service install is not supported on %s", runtime.GOOS)
	}
}

// Uninstall stops the service and removes the unit file.
func (m *ServiceManager) Uninstall() error {
	switch m.kind {
	case "darwin":
		return m.uninstallLaunchd()
	case "linux":
		return m.uninstallSystemd()
	default:
		return fmt.Errorf("service uninstall is not supported on %s", runtime.GOOS)
	}
}

func (m *ServiceManager) domainCandidates() []string {
	uid := fmt.Sprintf("%d", os.Getuid())
	return []string{"gui/" + uid, "user/" + uid}
}

func (m *ServiceManager) installLaunchd() error {
	if err := os.MkdirAll(filepath.Dir(m.unitPath), 0o755); err != nil {
		return fmt.Errorf("creating launch agents dir: %w", err)
	}
	if err := os.MkdirAll(m.paths.Root, 0o755); err != nil {
		return fmt.Errorf("creating agent dir: %w", err)
	}
	content := launchdPlist(m.exePath, m.paths.Log(), m.paths.ErrorLog())
	if err := os.WriteFile(m.unitPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing launchd plist: %w", err)
	}

	var lastErr error
	for _, domain := range m.domainCandidates() {
		_, _ = runCommand("launchctl", "bootout", domain+"/"+launchdLabel)
		if _, err := runCommand("launchctl", "bootstrap", domain, m.unitPath); err != nil {
			lastErr = err
			continue
		}
		if _, err := runCommand("launchctl", "kickstart", "-k", domain+"/"+launchdLabel); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("launchd bootstrap failed")
}

func (m *ServiceManager) uninstallLaunchd() error {
	for _, domain := range m.domainCandidates() {
		_, _ = runCommand("launchctl", "bootout", domain+"/"+launchdLabel)
	}
	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing launchd plist: %w", err)
	}
	return nil
}

func (m *ServiceManager) installSystemd() error {
	if err := os.MkdirAll(filepath.Dir(m.unitPath), 0o755); err != nil {
		return fmt.Errorf("creating systemd user dir: %w", err)
	}
	if err := os.MkdirAll(m.paths.Root, 0o755); err != nil {
		return fmt.Errorf("creating agent dir: %w", err)
	}
	if err := os.WriteFile(m.unitPath, []byte(systemdUnitFile(m.exePath)), 0o644); err != nil {
		return fmt.Errorf("writing systemd unit: %w", err)
	}
	if _, err := runCommand("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	if _, err := runCommand("systemctl", "--user", "enable", "--now", systemdUnit); err != nil {
		return err
	}
	return nil
}

func (m *ServiceManager) uninstallSystemd() error {
	_, _ = runCommand("systemctl", "--user", "disable", "--now", systemdUnit)
	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing systemd unit: %w", err)
	}
	_, _ = runCommand("systemctl", "--user", "daemon-reload")
	return nil
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return trimmed, fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return trimmed, fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}

func launchdPlist(exePath, stdoutPath, stderrPath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>start</string>
		<string>--foreground</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, launchdLabel, xmlEscape(exePath), xmlEscape(stdoutPath), xmlEscape(stderrPath))
}

func systemdUnitFile(exePath string) string {
	return fmt.Sprintf(`[Unit]
Description=Claude Code usage agent
After=default.target

[Service]
Type=simple
ExecStart=%s start --foreground
Restart=always
RestartSec=5
WorkingDirectory=%%h

[Install]
WantedBy=default.target
`, exePath)
}

func xmlEscape(in string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(in)); err != nil {
		return in
	}
	return b.String()
}
