package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/inkcam/internal/app"
	"github.com/ayusman/inkcam/internal/capture"
	"github.com/ayusman/inkcam/internal/config"
	"github.com/ayusman/inkcam/internal/server"
	"github.com/ayusman/inkcam/internal/store"
	"github.com/ayusman/inkcam/internal/tray"
	"github.com/ayusman/inkcam/internal/viewer"
)

func main() {
	fmt.Println("inkcam - Tattoo Overlay Camera")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	a := app.New(app.Config{
		Store:           st,
		Devices:         capture.Devices{Front: cfg.FrontCamera, Back: cfg.BackCamera},
		SegmenterName:   cfg.Segmenter,
		PluginDir:       cfg.PluginDir,
		BlendPlugin:     cfg.BlendPlugin,
		ChangeThreshold: cfg.ChangeThreshold,
	})
	if err := a.Start(); err != nil {
		log.Printf("Camera unavailable: %v", err)
	}
	defer a.Stop()

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{StaticDir: webDir, App: a})
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if cfg.Window {
		go func() {
			<-sigCh
			a.Stop()
			os.Exit(0)
		}()
		if err := viewer.Run(viewer.New(a, a.Frames(), cfg.DesignPath), "inkcam"); err != nil {
			log.Printf("Viewer failed: %v", err)
		}
		return
	}

	t := tray.New(a.Screen().Snapshot())
	updates, unsubscribe := a.Subscribe()
	defer unsubscribe()
	go t.Watch(updates)

	t.OnFlip(func() {
		if _, err := a.ToggleFacing(); err != nil {
			log.Printf("Failed to flip camera: %v", err)
		}
	})
	t.OnARMode(func(enabled bool) {
		if err := a.SetARMode(enabled); err != nil {
			log.Printf("Failed to set AR mode: %v", err)
		}
	})
	t.OnPreview(func() {
		if err := openBrowser(previewURL(cfg.Addr)); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})

	go func() {
		<-sigCh
		t.Quit()
	}()
	t.Run()
}

// previewURL returns the browser address for a listen address.
func previewURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web" and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
