package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"fontbake/internal/config"
	"fontbake/internal/epoch"
)

// Project-relative locations used by the in-editor payload.
const (
	payloadFolder = "Assets/FontBake/Editor"
	fontFolder    = "Assets/FontBake/Fonts"
	outputFolder  = "Assets/FontBake/Output"
)

// workspace is the disposable directory one job runs in.
type workspace struct {
	Root string
}

func newWorkspace(parent string) (workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, "fontbake-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return workspace{Root: root}, nil
}

func (w workspace) ProjectDir() string { return filepath.Join(w.Root, "Project") }
func (w workspace) JobFile() string    { return filepath.Join(w.Root, "job.json") }

func (w workspace) LogFile(phase Phase) string {
	return filepath.Join(w.Root, string(phase)+".log")
}

func (w workspace) projectPath(rel string) string {
	return filepath.Join(w.ProjectDir(), filepath.FromSlash(rel))
}

// jobDescription is read by the payload through JsonUtility, so field names
// must match its serialised class.
type jobDescription struct {
	FontAsset          string `json:"fontAsset"`
	OutputAssetFolder  string `json:"outputAssetFolder"`
	BundleOutputDir    string `json:"bundleOutputDir"`
	BundleName         string `json:"bundleName"`
	TMPName            string `json:"tmpName"`
	BuildTarget        string `json:"buildTarget"`
	AtlasSizes         []int  `json:"atlasSizes"`
	PointSize          int    `json:"pointSize"`
	Padding            int    `json:"padding"`
	ScanUpperBound     int    `json:"scanUpperBound"`
	ForceStatic        bool   `json:"forceStatic"`
	ForceDynamic       bool   `json:"forceDynamic"`
	IncludeControl     bool   `json:"includeControl"`
	DynamicWarmupLimit int    `json:"dynamicWarmupLimit"`
	DynamicWarmupBatch int    `json:"dynamicWarmupBatch"`
}

// prepare places the payload, the font copy and the job description into
// the project created by the create phase.
func (w workspace) prepare(opts config.Options, adapter epoch.Adapter, outputDir string) error {
	payloadPath := w.projectPath(payloadFolder + "/" + adapter.Payload.OutputFile)
	if err := writeFile(payloadPath, []byte(adapter.Payload.Source)); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	fontName := filepath.Base(opts.Convert.Font)
	if err := copyFile(opts.Convert.Font, w.projectPath(fontFolder+"/"+fontName)); err != nil {
		return fmt.Errorf("copy font: %w", err)
	}
	if err := os.MkdirAll(w.projectPath(outputFolder), 0o755); err != nil {
		return fmt.Errorf("create output asset folder: %w", err)
	}

	c := opts.Convert
	job := jobDescription{
		FontAsset:          fontFolder + "/" + fontName,
		OutputAssetFolder:  outputFolder,
		BundleOutputDir:    outputDir,
		BundleName:         opts.ResolvedBundleName(),
		TMPName:            opts.ResolvedTMPName(),
		BuildTarget:        c.BuildTarget,
		AtlasSizes:         c.AtlasSizes,
		PointSize:          c.PointSize,
		Padding:            c.Padding,
		ScanUpperBound:     c.ScanUpperBound,
		ForceStatic:        c.ForceStatic,
		ForceDynamic:       c.ForceDynamic,
		IncludeControl:     c.IncludeControl,
		DynamicWarmupLimit: c.DynamicWarmupLimit,
		DynamicWarmupBatch: c.DynamicWarmupBatch,
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job description: %w", err)
	}
	if err := writeFile(w.JobFile(), data); err != nil {
		return fmt.Errorf("write job description: %w", err)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
