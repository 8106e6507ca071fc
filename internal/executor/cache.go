package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/mrtpipelines/internal/workflow"
)

// resultFile is the name of the per-instance result record.
const resultFile = "_result.json"

type result struct {
	Hash      string           `json:"hash"`
	Interface string           `json:"interface"`
	Inputs    workflow.Inputs  `json:"inputs"`
	Outputs   workflow.Outputs `json:"outputs"`
	Finished  time.Time        `json:"finished"`
}

// contentHashLimit bounds the files fingerprinted by content. Larger files
// are fingerprinted by size and modification time.
const contentHashLimit = 1 << 20

// inputsHash fingerprints everything that determines an instance's outputs:
// the interface, the map fields, the resolved inputs and the current state of
// every file fed in by an upstream node.
func inputsHash(inst *workflow.Instance, in workflow.Inputs) (string, error) {
	payload := struct {
		Interface  string            `json:"interface"`
		IterFields []string          `json:"iterfields,omitempty"`
		Inputs     workflow.Inputs   `json:"inputs"`
		Files      map[string]string `json:"files,omitempty"`
	}{
		Interface:  inst.Node.Interface.Spec().Name,
		IterFields: inst.Node.IterFields,
		Inputs:     in,
		Files:      upstreamFiles(inst, in),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hashing inputs: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// upstreamFiles fingerprints the absolute paths among the edge-fed inputs.
// Static inputs are left out: they may name directories the instance itself
// writes to.
func upstreamFiles(inst *workflow.Instance, in workflow.Inputs) map[string]string {
	files := make(map[string]string)
	for _, src := range inst.Sources {
		paths, err := workflow.AsStrings(in[src.Input])
		if err != nil {
			continue
		}
		for _, p := range paths {
			if !filepath.IsAbs(p) {
				continue
			}
			if _, done := files[p]; !done {
				files[p] = fingerprint(p)
			}
		}
	}
	return files
}

// fingerprint identifies the current content of a file, or of the regular
// files directly inside a directory.
func fingerprint(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return "unreadable"
		}
		h := sha256.New()
		for _, e := range entries {
			if e.Type().IsRegular() {
				fmt.Fprintf(h, "%s=%s\n", e.Name(), fingerprint(filepath.Join(path, e.Name())))
			}
		}
		return "dir:" + hex.EncodeToString(h.Sum(nil))
	}
	if info.Size() <= contentHashLimit {
		if data, err := os.ReadFile(path); err == nil {
			sum := sha256.Sum256(data)
			return "sha256:" + hex.EncodeToString(sum[:])
		}
	}
	return fmt.Sprintf("stat:%d:%d", info.Size(), info.ModTime().UnixNano())
}

func loadResult(dir string) (*result, bool) {
	data, err := os.ReadFile(filepath.Join(dir, resultFile))
	if err != nil {
		return nil, false
	}
	var rec result
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	for k, v := range rec.Outputs {
		rec.Outputs[k] = workflow.Normalize(v)
	}
	return &rec, true
}

func saveResult(dir string, rec *result) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, resultFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, resultFile))
}

// outputsExist reports whether every absolute path among the outputs is
// still on disk. Other values, such as subject IDs, are not checked.
func outputsExist(out workflow.Outputs) bool {
	for _, v := range out {
		paths, err := workflow.AsStrings(v)
		if err != nil {
			continue
		}
		for _, p := range paths {
			if !filepath.IsAbs(p) {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				return false
			}
		}
	}
	return true
}
