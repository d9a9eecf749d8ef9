//go:build ORT

package provider

import (
	"os"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// newHugotSession uses ONNX Runtime, which is much faster than the Go
// backend but needs libonnxruntime at run time.
func newHugotSession() (*hugot.Session, error) {
	var opts []options.WithOption
	if dir := onnxLibraryDir(); dir != "" {
		opts = append(opts, options.WithOnnxLibraryPath(dir))
	}
	return hugot.NewORTSession(opts...)
}

// onnxLibraryDir returns ORT_LIB_DIR, else a lib directory next to the
// executable or in the working directory, else "" for the platform default.
func onnxLibraryDir() string {
	if dir := os.Getenv("ORT_LIB_DIR"); dir != "" {
		return dir
	}
	var roots []string
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	for _, root := range roots {
		dir := filepath.Join(root, "lib")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
