package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vkapp/engine"
	"github.com/spaghettifunk/vkapp/engine/core"
	"github.com/spaghettifunk/vkapp/engine/platform"
)

func main() {
	cfg, err := core.LoadConfig(core.ConfigPath())
	if err != nil {
		core.LogFatal("failed to load configuration: %s", err)
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogWarn("invalid log level `%s`, keeping the default: %s", cfg.Log.Level, err)
	}

	e := engine.New(cfg, platform.New())
	if err := e.Initialize(); err != nil {
		core.LogFatal("failed to initialize: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns Vulkan, so a signal only asks it to stop
	go func() {
		sig := <-sigCh
		core.LogInfo("received %s, closing", sig)
		e.RequestClose()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogError("exiting after a fatal error: %s", runErr)
		os.Exit(1)
	}
}
