package startup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/memory"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

const rule = "------------------------------------------------------------"

// section starts a titled block of startup output.
func section(title string, args ...interface{}) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func ok(format string, args ...interface{}) {
	logging.Info("  [OK] "+format, args...)
}

// LogMemoryConfig reports how the Go memory limit was set.
func LogMemoryConfig(result memory.LimitResult) {
	section("MEMORY")
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT: %s (from environment)", memory.FormatBytes(result.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  GOMEMLIMIT: %s (%.0f%% of %s container limit)",
			memory.FormatBytes(result.GoMemLimit), result.Ratio*100, memory.FormatBytes(result.ContainerLimit))
	default:
		logging.Info("  GOMEMLIMIT: not configured (set MEMORY_LIMIT to enable batch backpressure)")
	}
}

// LogEngineInit logs the engine setup.
func LogEngineInit(cfg media.ThumbnailConfig, workerCount int, vips bool, cacheDir string) {
	section("ENGINE")
	logging.Info("  Thumbnails:     %dpx, quality %d, %s", cfg.Size, cfg.Quality, cfg.Format)
	logging.Info("  Workers:        %d", workerCount)
	logging.Info("  Cache:          %s", cacheDir)
	switch {
	case vips:
		ok("libvips available, WebP thumbnails enabled")
	case cfg.Format == media.FormatWebP:
		logging.Warn("  libvips unavailable, thumbnails fall back to JPEG")
	}
}

// LogWatcherInit logs whether the image root is watched for changes.
func LogWatcherInit(enabled bool) {
	if enabled {
		ok("Watching image root for changes")
		return
	}
	logging.Info("  File watching disabled (WATCH_ENABLED=false)")
}

// RouteInfo describes one method of a registered route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists every method/path pair registered on router, in
// registration order. A route without a method restriction reports "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// getRouteGroup is the first path segment, or the first two under /api.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		sub, _, _ := strings.Cut(rest, "/")
		return "api/" + sub
	}
	return first
}

// LogHTTPRoutes logs the request logging switches and, at debug level,
// every registered route grouped by prefix.
func LogHTTPRoutes(router *mux.Router, logThumbnails, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		groups := make(map[string][]RouteInfo)
		for _, r := range routes {
			g := getRouteGroup(r.Path)
			groups[g] = append(groups[g], r)
		}
		names := make([]string, 0, len(groups))
		for g := range groups {
			names = append(names, g)
		}
		sort.Strings(names)

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, g := range names {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, r := range groups[g] {
				logging.Debug("    %-6s %s", r.Method, r.Path)
			}
		}
	}

	logging.Info("  Thumbnail request logging: %s", onOff(logThumbnails, "LOG_THUMBNAILS"))
	logging.Info("  Health check logging:      %s", onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(on bool, env string) string {
	if on {
		return "ON"
	}
	return fmt.Sprintf("OFF (set %s=true to enable)", env)
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	StartupDuration time.Duration
}

// LogServerStarted logs the listen address and startup time.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  API:             http://0.0.0.0:%s/api", config.Port)
	logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.Port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	ok("%s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	ok("Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

const banner = `
------------------------------------------------------------
   _                              _
  (_)_ __ ___   __ _  __ _  ___  | |__  _ __ _____      _____  ___ _ __
  | | '_ ' _ \ / _' |/ _' |/ _ \ | '_ \| '__/ _ \ \ /\ / / __|/ _ \ '__|
  | | | | | | | (_| | (_| |  __/ | |_) | | | (_) \ V  V /\__ \  __/ |
  |_|_| |_| |_|\__,_|\__, |\___| |_.__/|_|  \___/ \_/\_/ |___/\___|_|
                    |___/
------------------------------------------------------------`

func printBanner() {
	fmt.Println(banner)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	procs := runtime.GOMAXPROCS(0)
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:            %d (GOMAXPROCS %d)", runtime.NumCPU(), procs)
	if procs < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}
	if wd, err := os.Getwd(); err == nil {
		logging.Debug("  Working dir:     %s", wd)
	}
}

// ensureDirectory creates path if it is missing and fails if it exists as
// a file.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", name, err)
		}
		ok("Created %s directory %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat %s directory: %w", name, err)
	case !info.IsDir():
		return fmt.Errorf("%s path %s is not a directory", name, path)
	}
	ok("%s directory %s", strings.ToUpper(name[:1])+name[1:], path)
	return nil
}

// countImages reports how many supported images sit directly in dir.
func countImages(dir string) (images, dirs int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		switch {
		case e.IsDir():
			dirs++
		case e.Type()&fs.ModeType == 0 && media.IsImageFile(e.Name()):
			images++
		}
	}
	return images, dirs
}

// testWriteAccess creates and removes a temporary file in dir.
func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", filepath.Base(name), err)
	}
	return nil
}
