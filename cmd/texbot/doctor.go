package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-texbot/internal/config"
	"github.com/alnah/go-texbot/internal/hints"
)

// doctorResult is the outcome of a doctor run, also its JSON form.
type doctorResult struct {
	Status    string       `json:"status"` // "ready", "warnings", "errors"
	Renderer  string       `json:"renderer"`
	Toolchain []binaryInfo `json:"toolchain,omitempty"`
	Chrome    *chromeInfo  `json:"chrome,omitempty"`
	Env       envInfo      `json:"environment"`
	System    systemInfo   `json:"system"`
	Warnings  []string     `json:"warnings,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
}

// binaryInfo holds one toolchain lookup.
type binaryInfo struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

// chromeInfo is set only for the browser renderer.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

type systemInfo struct {
	WorkDir         string `json:"work_dir"`
	WorkDirWritable bool   `json:"work_dir_writable"`
}

func newDoctorFlagSet(jsonOutput *bool, configName *string) *flag.FlagSet {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.BoolVar(jsonOutput, "json", false, "machine-readable output")
	fs.StringVarP(configName, "config", "c", "", "config file name or path")
	return fs
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad usage.
func runDoctorCmd(args []string, env *Environment) int {
	var jsonOutput bool
	var configName string
	fs := newDoctorFlagSet(&jsonOutput, &configName)
	fs.SetOutput(env.Stderr)
	fs.Usage = func() { printDoctorUsage(env.Stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}

	cfg, err := loadConfig(configName, loadEnvConfig(env.Getenv))
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg, env)

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks for cfg.
func runDoctor(cfg *config.Config, env *Environment) *doctorResult {
	result := &doctorResult{
		Status:   "ready",
		Renderer: cfg.Render.Renderer,
		Env:      envInfo{OS: runtime.GOOS, Arch: runtime.GOARCH},
	}

	checkEnvironment(result, env)
	switch cfg.Render.Renderer {
	case config.RendererBrowser:
		checkChrome(result, cfg, env)
	case config.RendererRemote:
		if cfg.Remote.URL == "" {
			result.Errors = append(result.Errors, "remote.url is not set")
		}
	default:
		checkToolchain(result, cfg, env)
	}
	checkWorkDir(result, cfg.Render.WorkDir)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkToolchain looks up every binary the local renderer will run.
func checkToolchain(result *doctorResult, cfg *config.Config, env *Environment) {
	tc := cfg.Toolchain
	type need struct{ role, name string }
	needs := []need{{"compiler", tc.Compiler}}
	if tc.Texfot {
		needs = append(needs, need{"log filter", tc.TexfotBin})
	}
	if tc.Margins != "" {
		needs = append(needs, need{"crop", tc.Crop})
	}
	needs = append(needs, need{"rasterizer", tc.Convert})

	for _, n := range needs {
		info := binaryInfo{Role: n.role, Name: n.name}
		if path, err := env.LookPath(n.name); err == nil {
			info.Found = true
			info.Path = path
		} else {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s not found (%s)%s", n.name, n.role, hints.ForMissingBinary(n.name)))
		}
		result.Toolchain = append(result.Toolchain, info)
	}
}

// checkChrome detects Chrome/Chromium for the browser renderer.
func checkChrome(result *doctorResult, cfg *config.Config, env *Environment) {
	info := &chromeInfo{Sandbox: !cfg.Browser.NoSandbox}
	result.Chrome = info

	chromePath := cfg.Browser.Bin
	if chromePath == "" {
		chromePath = env.Getenv("ROD_BROWSER_BIN")
	}
	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found"+hints.ForBrowserConnect())
			return
		}
	}
	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}
	info.Found = true
	info.Path = chromePath

	if (result.Env.Container || result.Env.CI) && info.Sandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but browser.noSandbox is false")
	}
}

// ciVars are set by common CI runners.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}

// checkEnvironment records container and CI detection.
func checkEnvironment(result *doctorResult, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer(env)

	for _, v := range ciVars {
		if env.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer returns the first container signal found, if any.
func isContainer(env *Environment) (bool, string) {
	if env.Getenv("TEXBOT_CONTAINER") == "1" {
		return true, "TEXBOT_CONTAINER=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	if v := env.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if env.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkWorkDir verifies the artifact directory can be created and written.
func checkWorkDir(result *doctorResult, dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	result.System.WorkDir = abs

	if err := os.MkdirAll(abs, 0o750); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("work directory unusable: %v%s", err, hints.ForWorkDir()))
		return
	}
	f, err := os.CreateTemp(abs, ".doctor-*")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("work directory not writable: %s%s", abs, hints.ForWorkDir()))
		return
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	result.System.WorkDirWritable = true
}

// report writes indented "[LEVEL] text" lines grouped under headings.
type report struct{ w io.Writer }

func (r report) heading(title string) { fmt.Fprintln(r.w, title) }
func (r report) end()                 { fmt.Fprintln(r.w) }

func (r report) line(level, format string, args ...any) {
	fmt.Fprintf(r.w, "  [%s] %s\n", level, fmt.Sprintf(format, args...))
}

// okOrError picks the level for a pass/fail check.
func okOrError(ok bool) string {
	if ok {
		return "OK"
	}
	return "ERROR"
}

var statusLines = map[string]string{
	"ready":    "Status: Ready to render",
	"warnings": "Status: Ready with warnings",
	"errors":   "Status: Not ready (see errors above)",
}

// printDoctorResult writes the text form of a doctor run.
func printDoctorResult(w io.Writer, res *doctorResult) {
	r := report{w: w}
	r.heading("texbot doctor")
	r.end()
	r.heading("Renderer: " + res.Renderer)
	r.end()

	if len(res.Toolchain) > 0 {
		r.heading("Toolchain")
		for _, b := range res.Toolchain {
			detail := b.Path
			if !b.Found {
				detail = b.Name + " not found"
			}
			r.line(okOrError(b.Found), "%-10s %s", b.Role, detail)
		}
		r.end()
	}

	if c := res.Chrome; c != nil {
		r.heading("Browser")
		switch {
		case !c.Found:
			r.line("ERROR", "chrome not found")
		case c.Sandbox:
			r.line("OK", "%s (sandboxed)", c.Path)
		default:
			r.line("OK", "%s (browser.noSandbox)", c.Path)
		}
		r.end()
	}

	r.heading("Environment")
	r.line("OK", "%s/%s", res.Env.OS, res.Env.Arch)
	if res.Env.Container {
		r.line("OK", "container (%s)", res.Env.ContainerHint)
	}
	if res.Env.CI {
		r.line("OK", "ci")
	}
	r.end()

	r.heading("Work directory")
	r.line(okOrError(res.System.WorkDirWritable), "%s", res.System.WorkDir)
	r.end()

	if len(res.Warnings) > 0 {
		r.heading("Warnings:")
		for _, msg := range res.Warnings {
			r.line("WARN", "%s", msg)
		}
		r.end()
	}
	if len(res.Errors) > 0 {
		r.heading("Errors:")
		for _, msg := range res.Errors {
			r.line("ERROR", "%s", strings.ReplaceAll(msg, "\n", "\n    "))
		}
		r.end()
	}

	if line, ok := statusLines[res.Status]; ok {
		fmt.Fprintln(w, line)
	}
}
