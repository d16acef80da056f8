package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"
)

const (
	launchdLabel    = "com.allaspects.legalsmart"
	systemdUnitName = "legalsmart.service"
)

// launchdPlistTemplate runs LegalSmart as a persistent macOS user agent.
const launchdPlistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ProgramPath}}</string>
        <string>serve</string>
        <string>--foreground</string>
    </array>

    <key>WorkingDirectory</key>
    <string>{{.DataDir}}</string>

    <key>KeepAlive</key>
    <true/>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.DataDir}}/legalsmart.out.log</string>

    <key>StandardErrorPath</key>
    <string>{{.DataDir}}/legalsmart.err.log</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>5</integer>
</dict>
</plist>
`

// systemdUnitTemplate runs LegalSmart as a systemd user service.
const systemdUnitTemplate = `[Unit]
Description=LegalSmart client records API
After=network-online.target

[Service]
Type=simple
ExecStart={{.ProgramPath}} serve --foreground
WorkingDirectory={{.DataDir}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// ServiceSpec is the data rendered into a service definition.
type ServiceSpec struct {
	Label       string
	ProgramPath string
	DataDir     string
}

// RenderLaunchdPlist renders the macOS launchd property list.
func RenderLaunchdPlist(spec ServiceSpec) ([]byte, error) {
	return render("plist", launchdPlistTemplate, spec)
}

// RenderSystemdUnit renders the systemd user unit.
func RenderSystemdUnit(spec ServiceSpec) ([]byte, error) {
	return render("unit", systemdUnitTemplate, spec)
}

func render(name, text string, spec ServiceSpec) ([]byte, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, spec); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// InstallService registers the current binary as a user service: a
// launchd agent on macOS or a systemd user unit on Linux.
func InstallService(dataDir string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determining executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable symlinks: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	spec := ServiceSpec{Label: launchdLabel, ProgramPath: execPath, DataDir: dataDir}

	switch runtime.GOOS {
	case "darwin":
		data, err := RenderLaunchdPlist(spec)
		if err != nil {
			return err
		}
		path := filepath.Join(homeDir, "Library", "LaunchAgents", launchdLabel+".plist")
		if err := writeServiceFile(path, data); err != nil {
			return err
		}
		// Unload first; failure just means it was not loaded.
		_ = exec.Command("launchctl", "unload", path).Run()
		if err := runVisible("launchctl", "load", path); err != nil {
			return fmt.Errorf("launchctl load: %w", err)
		}
		fmt.Printf("Service %s loaded via launchctl\n", launchdLabel)
	case "linux":
		data, err := RenderSystemdUnit(spec)
		if err != nil {
			return err
		}
		path := filepath.Join(homeDir, ".config", "systemd", "user", systemdUnitName)
		if err := writeServiceFile(path, data); err != nil {
			return err
		}
		if err := runVisible("systemctl", "--user", "daemon-reload"); err != nil {
			return fmt.Errorf("systemctl daemon-reload: %w", err)
		}
		if err := runVisible("systemctl", "--user", "enable", "--now", systemdUnitName); err != nil {
			return fmt.Errorf("systemctl enable: %w", err)
		}
		fmt.Printf("Service %s enabled via systemctl --user\n", systemdUnitName)
	default:
		return fmt.Errorf("service install is not supported on %s", runtime.GOOS)
	}
	return nil
}

// UninstallService stops and removes the service definition.
func UninstallService() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	var path string
	switch runtime.GOOS {
	case "darwin":
		path = filepath.Join(homeDir, "Library", "LaunchAgents", launchdLabel+".plist")
		_ = exec.Command("launchctl", "unload", path).Run()
	case "linux":
		path = filepath.Join(homeDir, ".config", "systemd", "user", systemdUnitName)
		_ = exec.Command("systemctl", "--user", "disable", "--now", systemdUnitName).Run()
	default:
		return fmt.Errorf("service uninstall is not supported on %s", runtime.GOOS)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	fmt.Println("Service uninstalled")
	return nil
}

func writeServiceFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("Service definition written to %s\n", path)
	return nil
}

func runVisible(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
