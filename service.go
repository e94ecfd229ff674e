package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"edudiff/core"
	"edudiff/logging"
	"edudiff/shutdown"
)

// Program runs the web UI under the platform service manager (Windows
// services, systemd, launchd).
type Program struct {
	cfg     *core.Config
	logger  *logging.Logger
	manager *shutdown.Manager
	exit    chan struct{}
	err     error
}

// Start is called by the service manager. It must not block.
func (p *Program) Start(s service.Service) error {
	cfg, logger, code := bootstrap()
	if code != core.ExitCodeSuccess {
		return fmt.Errorf("startup failed: %s", core.ExitCodeName(code))
	}
	p.cfg = cfg
	p.logger = logger
	// The service manager delivers stop requests; no signal handling here.
	p.manager = shutdown.NewManager(logger, shutdown.WithTimeout(shutdownTimeout(cfg)))
	p.exit = make(chan struct{})

	go p.run()
	return nil
}

func (p *Program) run() {
	defer close(p.exit)
	if err := serve(p.manager, p.cfg, p.logger); err != nil {
		p.logger.Error("Service stopped with error", zap.Error(err))
		p.err = err
	}
}

// Stop asks the server to shut down and waits for it.
func (p *Program) Stop(s service.Service) error {
	if p.manager == nil {
		return nil
	}
	p.manager.Trigger()

	select {
	case <-p.exit:
	case <-time.After(shutdownTimeout(p.cfg) + 5*time.Second):
		return errors.New("timeout waiting for service to stop")
	}
	_ = p.logger.Sync()
	return p.err
}

// ServiceConfig describes the installed service. The service manager
// launches "edudiff service run".
func ServiceConfig() *service.Config {
	return &service.Config{
		Name:        "EduDiff",
		DisplayName: "EduDiff Educational Image Generator",
		Description: "Web UI that turns Spanish educational prompts into illustrations",
		Arguments:   []string{"service", "run"},
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

// newService is replaced in tests.
var newService = func(prg service.Interface, cfg *service.Config) (service.Service, error) {
	return service.New(prg, cfg)
}

// PrintServiceUsage prints the help for the service subcommands.
func PrintServiceUsage(w io.Writer) {
	fmt.Fprintln(w, "EduDiff Service Management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: edudiff service <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  install    Install EduDiff as a system service")
	fmt.Fprintln(w, "  uninstall  Remove the system service (alias: remove)")
	fmt.Fprintln(w, "  start      Start the service")
	fmt.Fprintln(w, "  stop       Stop the service")
	fmt.Fprintln(w, "  restart    Restart the service")
	fmt.Fprintln(w, "  status     Show the current service status")
	fmt.Fprintln(w, "  run        Run under the service manager (used by the installed service)")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run without arguments to start the web UI in the foreground.")
}

// HandleServiceCommand runs "edudiff service <args>" and returns the exit
// code.
func HandleServiceCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		PrintServiceUsage(stderr)
		return core.ExitCodeError
	}

	command := args[0]
	switch command {
	case "help", "-h", "--help", "-help":
		PrintServiceUsage(stdout)
		return core.ExitCodeSuccess
	case "remove":
		command = "uninstall"
	case "install", "uninstall", "start", "stop", "restart", "status", "run":
	default:
		fmt.Fprintf(stderr, "Unknown service command %q\n\n", command)
		PrintServiceUsage(stderr)
		return core.ExitCodeError
	}

	s, err := newService(&Program{}, ServiceConfig())
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create service: %v\n", err)
		return core.ExitCodeError
	}

	switch command {
	case "run":
		if err := s.Run(); err != nil {
			fmt.Fprintf(stderr, "Error: service run failed: %v\n", err)
			return core.ExitCodeError
		}
		return core.ExitCodeSuccess

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to get service status: %v\n", err)
			return core.ExitCodeError
		}
		switch status {
		case service.StatusRunning:
			fmt.Fprintln(stdout, "Service is running")
		case service.StatusStopped:
			fmt.Fprintln(stdout, "Service is stopped")
		default:
			fmt.Fprintln(stdout, "Service status unknown")
		}
		return core.ExitCodeSuccess
	}

	if err := service.Control(s, command); err != nil {
		fmt.Fprintf(stderr, "Error: failed to %s service: %v\n", command, err)
		return core.ExitCodeError
	}
	fmt.Fprintf(stdout, "Service %s completed successfully\n", command)
	return core.ExitCodeSuccess
}
