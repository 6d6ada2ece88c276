package main

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// startProfiling opt-in-starts continuous profiling against a pyroscope
// server, the generation orchestrator's equivalent of the teacher's --pprof
// flag in cmd/motel/main.go — there net/http/pprof serves on demand; here
// profiling streams continuously to a collector since a forge run is a
// short-lived CLI invocation rather than a long-running process pprof can
// be dialed into interactively.
func startProfiling(serverAddr string) (func(), error) {
	if serverAddr == "" {
		return func() {}, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "forge",
		ServerAddress:   serverAddr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting pyroscope profiler: %w", err)
	}
	return func() {
		_ = profiler.Stop()
	}, nil
}
