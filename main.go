package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pgcompute/compute-contract-tests/bench"
	"github.com/pgcompute/compute-contract-tests/computeservice"
	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/scenarios"
)

const statusQueryTimeout = time.Second * 10

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	mainDebugLogger := logging.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	if params.serviceCommand != "" {
		if err := launchService(params.serviceCommand); err != nil {
			fmt.Fprintf(os.Stderr, "Could not launch control plane: %s\n", err)
			os.Exit(1)
		}
	}

	client, err := computeservice.NewClient(params.serviceURL, statusQueryTimeout, mainDebugLogger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Control plane error: %s\n", err)
		os.Exit(1)
	}

	store, err := bench.OpenResultStore(params.benchDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark store error: %s\n", err)
		os.Exit(1)
	}
	defer store.Close()
	benchmarker := bench.NewBenchmarker(store, mainDebugLogger)

	fmt.Println()
	printFilterDescription(client, params)

	fmt.Println("Running scenario suite")

	scenarioLogger := &ConsoleScenarioLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := scenarios.RunScenarioSuite(client, benchmarker, params.filters.AsFilter, scenarioLogger)

	fmt.Println()
	printResults(results)

	if params.stopServiceAtEnd {
		if err := client.StopService(); err != nil {
			fmt.Fprintf(os.Stderr, "Could not stop control plane: %s\n", err)
		}
	}
	if !results.OK() {
		os.Exit(1)
	}
}

// launchService starts the control plane as a detached subprocess. The
// harness does not supervise it; -stop-service-at-end asks it to exit over
// HTTP instead.
func launchService(command string) error {
	var b commandBuilder
	b.add("/bin/sh", "-c", command)
	fmt.Printf("Launching control plane: %s\n", b)

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func printFilterDescription(client *computeservice.Client, params commandParams) {
	filters := params.filters
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Println("Some scenarios will be skipped based on the filter criteria for this run:")
		if filters.MustMatch.IsDefined() {
			fmt.Printf("  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Printf("  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Println()
	}

	missingCapabilities := client.MissingCapabilities(scenarios.AllCapabilities)
	if len(missingCapabilities) > 0 {
		fmt.Println("Some scenarios may be skipped because the control plane does not support the following capabilities:")
		fmt.Printf("  %s\n", strings.Join(missingCapabilities, ", "))
		fmt.Println()
	}
}
