package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mirelabs/gatekeeper/internal/artifact"
	"github.com/mirelabs/gatekeeper/internal/manifest"
	"github.com/mirelabs/gatekeeper/internal/workspace"
)

// #region main

func main() {
	wsPath := flag.String("workspace", "", "path to the workspace root")
	wsID := flag.String("id", "", "workspace identifier (default: workspace directory base name)")
	pipeline := flag.String("pipeline", "", "pipeline manifest YAML (default: built-in pipeline)")
	outPath := flag.String("out", "", "output manifest JSON path")
	verifyPath := flag.String("verify", "", "verify workspace against an existing golden manifest instead of exporting")
	flag.Parse()

	if *wsPath == "" || (*outPath == "" && *verifyPath == "") {
		fmt.Fprintln(os.Stderr, "usage: manifest-export --workspace path [--id slug] [--pipeline pipeline.yaml] (--out golden.json | --verify golden.json)")
		os.Exit(2)
	}

	if err := run(*wsPath, *wsID, *pipeline, *outPath, *verifyPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(wsPath, wsID, pipeline, outPath, verifyPath string) error {
	var reg *artifact.Registry
	var err error
	if pipeline == "" {
		reg, err = artifact.NewRegistry(artifact.DefaultPipeline())
	} else {
		reg, err = artifact.LoadPipeline(pipeline)
	}
	if err != nil {
		return err
	}

	if wsID == "" {
		wsID = filepath.Base(filepath.Clean(wsPath))
	}
	ws, err := workspace.New(wsID, wsPath)
	if err != nil {
		return err
	}

	if verifyPath != "" {
		golden, err := manifest.Load(verifyPath)
		if err != nil {
			return err
		}
		result, err := manifest.Verify(ws, reg, golden)
		if err != nil {
			return err
		}
		for _, c := range result.Checks {
			status := "ok"
			if !c.Pass {
				status = "FAIL"
			}
			fmt.Printf("%-4s %s %s\n", status, c.Name, c.Detail)
		}
		if !result.Passed {
			return fmt.Errorf("verification failed: %s", result.Reason)
		}
		fmt.Println("workspace matches golden manifest")
		return nil
	}

	m, err := manifest.Build(ws, reg)
	if err != nil {
		return err
	}
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", outPath, err)
	}

	hash, err := m.Hash()
	if err != nil {
		return err
	}
	fmt.Printf("exported %d entries to %s\n", len(m.Entries), outPath)
	fmt.Printf("manifest sha256: %s\n", hash)
	return nil
}

// #endregion run
