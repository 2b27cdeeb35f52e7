package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkhoa/linear-todo/internal/app"
	"github.com/dkhoa/linear-todo/internal/model"
	"github.com/dkhoa/linear-todo/internal/store"
)

const version = "0.1.0"

func main() {
	configFlag := flag.String("config", "", "path to the config file")
	dbFlag := flag.String("db", "", "path to the cache database")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("linear-todo version %s\n", version)
		return
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = filepath.Join(filepath.Dir(configPath), "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating data directory: %v\n", err)
		os.Exit(1)
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	// The TUI owns the terminal; keep background log output out of it.
	if os.Getenv("LINEAR_TODO_DEBUG") != "" {
		f, err := tea.LogToFile(filepath.Join(filepath.Dir(configPath), "debug.log"), "debug")
		if err == nil {
			defer f.Close()
		}
	} else {
		log.SetOutput(io.Discard)
	}

	m := app.New(*cfg, configPath, s)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
