package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ONNXRuntimeVersion is the onnxruntime release matching the onnxruntime_go
// version pulled in by fastembed-go.
const ONNXRuntimeVersion = "1.23.0"

const onnxReleaseURL = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

// ErrUnsupportedPlatform indicates the current OS/arch has no onnxruntime release.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var onnxPlatforms = map[string]string{
	"linux/amd64":  "linux-x64",
	"linux/arm64":  "linux-aarch64",
	"darwin/amd64": "osx-x86_64",
	"darwin/arm64": "osx-arm64",
}

func onnxPlatform(goos, goarch string) (string, error) {
	p, ok := onnxPlatforms[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return p, nil
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

// ONNXLibraryPath returns ONNX_PATH when set, else the library under
// libDir when present, else "".
func ONNXLibraryPath(libDir string) string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	p := filepath.Join(libDir, onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// EnsureONNXRuntime makes the onnxruntime shared library available under
// libDir, downloading it when missing, and exports ONNX_PATH for fastembed.
func EnsureONNXRuntime(ctx context.Context, libDir string) (string, error) {
	path := ONNXLibraryPath(libDir)
	if path == "" {
		if err := downloadONNXRuntime(ctx, http.DefaultClient, ONNXRuntimeVersion, libDir); err != nil {
			return "", fmt.Errorf("installing onnxruntime %s: %w", ONNXRuntimeVersion, err)
		}
		if path = ONNXLibraryPath(libDir); path == "" {
			return "", fmt.Errorf("onnxruntime installed but %s not found in %s", onnxLibraryName(runtime.GOOS), libDir)
		}
	}
	if err := os.Setenv("ONNX_PATH", path); err != nil {
		return "", fmt.Errorf("setting ONNX_PATH: %w", err)
	}
	return path, nil
}

func downloadONNXRuntime(ctx context.Context, client *http.Client, version, destDir string) error {
	platform, err := onnxPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(onnxReleaseURL, version, platform, version), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	return extractLibraries(resp.Body, destDir, prefix, onnxLibraryName(runtime.GOOS))
}

// extractLibraries copies regular files and symlinks under prefix from a
// gzipped tarball into destDir, flattening paths.
func extractLibraries(r io.Reader, destDir, prefix, libName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	found := false
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if !strings.HasPrefix(name, prefix) || hdr.Typeflag == tar.TypeDir {
			continue
		}
		base := filepath.Base(name)
		dest := filepath.Join(destDir, base)

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			// Only link within destDir.
			if strings.Contains(hdr.Linkname, "/") {
				continue
			}
			_ = os.Remove(dest)
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				continue
			}
		case tar.TypeReg:
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) // #nosec G302 -- shared library must be loadable
			if err != nil {
				return fmt.Errorf("creating %s: %w", base, err)
			}
			_, err = io.Copy(f, io.LimitReader(tr, 512<<20))
			cerr := f.Close()
			if err != nil {
				return fmt.Errorf("writing %s: %w", base, err)
			}
			if cerr != nil {
				return fmt.Errorf("closing %s: %w", base, cerr)
			}
		default:
			continue
		}
		if base == libName || strings.HasPrefix(base, libName+".") {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}
