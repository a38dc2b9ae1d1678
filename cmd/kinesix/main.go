package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/gethiox/kinesix/internal/pkg/action"
	"github.com/gethiox/kinesix/internal/pkg/kinesix"
	"github.com/gethiox/kinesix/internal/pkg/logger"
	"github.com/gethiox/kinesix/internal/pkg/source"
	"github.com/gethiox/kinesix/internal/pkg/utils"
	"github.com/logrusorgru/aurora"
)

var log = logger.GetLogger()

const defaultConfigPath = "kinesix-config/kinesix.config"

var (
	ui         = flag.Bool("ui", false, "engage terminal ui")
	force256   = flag.Bool("256", false, "force 256 color mode")
	nocolor    = flag.Bool("nocolor", false, "disable color")
	silent     = flag.Bool("silent", false, "no output logging")
	debug      = flag.Bool("debug", false, "show debug messages")
	list       = flag.Bool("list", false, "print gesture capable devices and exit")
	configPath = flag.String("config", defaultConfigPath, "path to the main config file")
	device     = flag.String("device", "", "preferred device, event node path or part of its name (overrides config)")
	logLevel   = flag.Int("loglevel", 1,
		"logging level, each level enables additional information class (0-2, default: 1)\n"+
			"\navailable options:\n"+
			"0: general info (eg. device appearance status)\n"+
			"1: recognized gestures and executed commands\n"+
			"2: raw gesture phases reported by the device",
	)
)

func parseFlags() {
	flag.Parse()
	*logLevel += logger.InfoLvl
	if *debug {
		*logLevel = logger.DebugLvl
	}
}

// handleSigs cancels on the first signal, the second one exits immediately.
func handleSigs(sigs <-chan os.Signal, cancel func()) {
	var counter int
	for sig := range sigs {
		if counter > 0 {
			fmt.Println("Dirty exit")
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("signal received: %v", sig), logger.Debug)
		cancel()
		counter++
	}
}

func runUI(sigs chan<- os.Signal) (*gocui.Gui, error) {
	g, err := GetCli()
	if err != nil {
		return nil, err
	}

	go func() {
		err := g.MainLoop()
		if err != nil && !errors.Is(err, gocui.ErrQuit) {
			log.Info(fmt.Sprintf("ui failed: %v", err), logger.Error)
		}
		// leaving the ui is the same as asking for exit
		select {
		case sigs <- syscall.SIGINT:
		default:
		}
	}()
	return g, nil
}

// printLogs writes log messages to stdout until done is closed, then flushes what is left.
func printLogs(done <-chan struct{}, au aurora.Aurora, level int) {
	show := func(data []byte) {
		msg, err := unpack(data)
		if err != nil {
			fmt.Printf("%s\n", string(data))
			return
		}
		if m := prepareString(msg, au, -1, level); m != "" {
			fmt.Printf("%s\n", m)
		}
	}

	for {
		select {
		case data := <-logger.Messages:
			show(data)
		case <-done:
			for {
				select {
				case data := <-logger.Messages:
					show(data)
				default:
					return
				}
			}
		}
	}
}

func discardLogs(done <-chan struct{}) {
	for {
		select {
		case <-logger.Messages:
		case <-done:
			return
		}
	}
}

func loadConfig() kinesix.KinesixConfig {
	if *configPath == defaultConfigPath {
		err := createConfigDirectoryIfNeeded(filepath.Dir(defaultConfigPath))
		if err != nil {
			log.Info(fmt.Sprintf("cannot create config directory: %v", err), logger.Warning)
		}
	}

	cfg, err := kinesix.LoadKinesixConfig(*configPath)
	if err != nil {
		log.Info(fmt.Sprintf("%v, using defaults", err), logger.Warning)
		cfg = kinesix.DefaultConfig()
	}
	if *device != "" {
		cfg.Kinesix.Device = *device
	}
	log.Info(fmt.Sprintf("kinesix config: %+v", cfg), logger.Debug)
	return cfg
}

func listDevices(cfg kinesix.KinesixConfig) error {
	b, err := kinesix.New(nil, nil, cfg.Options()...)
	if err != nil {
		return err
	}
	defer b.Close()

	devices, err := b.GetValidDeviceList()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no gesture capable devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\t%04x:%04x\n", d.Path, d.Name, d.VendorID, d.ProductID)
	}
	return nil
}

func exitOnError(err error) {
	var openErr *source.OpenError
	if errors.As(err, &openErr) {
		fmt.Fprintf(os.Stderr, "cannot open %s: %v\n", openErr.Path, openErr.Err)
	} else {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	os.Exit(1)
}

func main() {
	parseFlags()
	if *force256 {
		os.Setenv("TERM", "xterm-256color")
	}

	if *list {
		logsDone := make(chan struct{})
		go discardLogs(logsDone)
		err := listDevices(loadConfig())
		close(logsDone)
		if err != nil {
			exitOnError(err)
		}
		return
	}

	warnAboutPermissions()
	cfg := loadConfig()

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())

	go handleSigs(sigs, cancel)

	bindings, err := action.LoadBindings(cfg.Kinesix.Bindings)
	if err != nil {
		log.Info(fmt.Sprintf("cannot load bindings: %v", err), logger.Warning)
	}
	runner := action.NewRunner(bindings, nil)

	wg := sync.WaitGroup{}
	records := make(chan action.Record, 16)
	fan := utils.NewDynamicFanOut[action.Record](records)

	_, runnerRecords, err := fan.SpawnOutput()
	if err != nil {
		panic(err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx, runnerRecords)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchBindings(ctx, cfg.Kinesix.Bindings, runner)
	}()

	st := &status{}
	logsDone := make(chan struct{})
	var logsWg sync.WaitGroup
	var g *gocui.Gui

	switch {
	case *ui && !*silent:
		g, err = runUI(sigs)
		if err != nil {
			panic(err)
		}
		_, uiRecords, err := fan.SpawnOutput()
		if err != nil {
			panic(err)
		}
		go logView(ctx, g, !*nocolor, *logLevel, cfg.UI.LogBufferSize, cfg.UI.LogViewRate)
		go overviewView(ctx, g, !*nocolor, st, runner, uiRecords, time.Millisecond*500)
	case *silent:
		logsWg.Add(1)
		go func() {
			defer logsWg.Done()
			discardLogs(logsDone)
		}()
	default:
		fmt.Printf("for nicer output use -ui flag\n")
		logsWg.Add(1)
		go func() {
			defer logsWg.Done()
			printLogs(logsDone, aurora.NewAurora(!*nocolor), *logLevel)
		}()
	}

	err = runManager(ctx, cfg, cfg.Kinesix.Device, st, records)
	if err != nil {
		log.Info(fmt.Sprintf("gesture engine stopped: %v", err), logger.Error)
	}

	cancel()
	close(records)
	<-fan.Done()
	wg.Wait()

	if g != nil {
		g.Close()
	}
	close(logsDone)
	logsWg.Wait()

	if err != nil {
		exitOnError(err)
	}
}
