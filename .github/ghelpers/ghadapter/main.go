package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"

	"golang.org/x/xerrors"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: ghadapter <command> [args...]")
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stderr = os.Stderr

	output, err := cmd.Output()
	if err != nil {
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(output, &result); err != nil {
		return
	}

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		f, err := os.OpenFile(githubOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("failed to open GITHUB_OUTPUT: %v", err)
		}
		defer f.Close()

		if err := writeOutputs(f, result); err != nil {
			log.Fatalf("failed to write outputs: %v", err)
		}
	}

	if v := os.Getenv("MAX_MISMATCH_COUNT"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid MAX_MISMATCH_COUNT %q: %v", v, err)
		}
		if err := checkMismatchCount(result, limit); err != nil {
			fmt.Fprintf(os.Stderr, "::error::%v\n", err)
			os.Exit(1)
		}
	}
}

// writeOutputs writes the top level fields of result as key=value lines in
// key order.
func writeOutputs(w io.Writer, result map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(result)) {
		value := result[key]
		if _, isObject := value.(map[string]any); isObject {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s=%v\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

func checkMismatchCount(result map[string]any, limit int64) error {
	if message, ok := result["error"].(string); ok && message != "" {
		return xerrors.Errorf("comparison failed: %s", message)
	}

	count, ok := result["mismatchCount"].(float64)
	if !ok {
		return xerrors.New("output has no mismatchCount")
	}
	if int64(count) > limit {
		return xerrors.Errorf("%d pixels differ, at most %d allowed", int64(count), limit)
	}
	return nil
}
