package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// epoll and evdev limit kinesix to linux
var availableTargets = []target{
	{goarch: "arm", goarm: "6"},
	{goarch: "arm", goarm: "7"},
	{goarch: "arm64"},
	{goarch: "386"},
	{goarch: "amd64"},
}

type target struct {
	goarch string
	goarm  string
}

func (t target) String() string {
	if t.goarm != "" {
		return fmt.Sprintf("linux-%s-v%s", t.goarch, t.goarm)
	}
	return fmt.Sprintf("linux-%s", t.goarch)
}

func (t target) env() []string {
	env := append(os.Environ(), "GOOS=linux", "GOARCH="+t.goarch, "CGO_ENABLED=0")
	if t.goarm != "" {
		env = append(env, "GOARM="+t.goarm)
	}
	return env
}

type buildResult struct {
	target target
	output string
	err    error
}

func build(t target) buildResult {
	params := []string{"build", "-trimpath", "-o", fmt.Sprintf("./builds/%s-%s", basename, t)}
	if race {
		params = append(params, "-race")
	}
	params = append(params, project)

	cmd := exec.Command("go", params...)
	cmd.Env = t.env()

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return buildResult{target: t, output: output.String(), err: err}
}

func selectTargets(selection string) ([]target, error) {
	if selection == "all" {
		return availableTargets, nil
	}

	var selected []target
	for _, name := range strings.Split(selection, ",") {
		var found bool
		for _, t := range availableTargets {
			if t.String() == name {
				selected = append(selected, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("target not found: %s", name)
		}
	}
	return selected, nil
}

var selection, project, basename string
var race bool

func main() {
	var names []string
	for _, t := range availableTargets {
		names = append(names, t.String())
	}
	flag.StringVar(&selection, "platforms", "all", fmt.Sprintf(
		"comma-separated target platform list\navailable: %s", strings.Join(names, ",")),
	)
	flag.StringVar(&project, "project", "./cmd/kinesix/", "choose project directory")
	flag.StringVar(&basename, "base", "kinesix", "base filename for output binaries")
	flag.BoolVar(&race, "race", false, "include race detector")
	flag.Parse()

	log.SetFlags(log.Ltime)

	targets, err := selectTargets(selection)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
	log.Printf("building %s for %d targets", project, len(targets))

	results := make([]buildResult, len(targets))
	wg := sync.WaitGroup{}
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t target) {
			defer wg.Done()
			results[i] = build(t)
			if results[i].err != nil {
				log.Printf("building target %s failed", t)
				return
			}
			log.Printf("building target %s success", t)
		}(i, t)
	}
	wg.Wait()

	var failed bool
	for _, r := range results {
		if r.err == nil {
			continue
		}
		failed = true
		fmt.Printf("\n>>> Failed build: target: %s, error: %v\n", r.target, r.err)
		if r.output != "" {
			fmt.Printf("======== OUTPUT ========\n%s========================\n", r.output)
		}
	}
	if failed {
		os.Exit(1)
	}
}
