package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
)

// defaultMaxDepth bounds how deep image-folder discovery descends below
// an extraction root.
const defaultMaxDepth = 3

// imageExtensions lists the file extensions recognized as images during
// folder discovery.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// Ingestor extracts submitted archives into fresh working directories
// and discovers the folders inside them that contain image files.
// Extraction directories are not deleted by the Ingestor; the caller
// owns their cleanup.
type Ingestor struct {
	workDir  string
	maxDepth int
}

// NewIngestor creates an Ingestor that extracts under workDir.
func NewIngestor(workDir string) *Ingestor {
	return &Ingestor{workDir: workDir, maxDepth: defaultMaxDepth}
}

// Extract unpacks one zip archive into a uniquely named directory under
// the working directory and returns that directory's path.
func (i *Ingestor) Extract(archivePath string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	dest := filepath.Join(i.workDir, "extract-"+uuid.NewString())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}

	for _, f := range reader.File {
		if err := extractFile(f, dest); err != nil {
			return "", fmt.Errorf("extract %s from %s: %w", f.Name, archivePath, err)
		}
	}

	return dest, nil
}

// ExtractAll extracts every archive, collecting per-archive errors
// instead of aborting. The returned slices hold the successfully
// extracted directories and the errors of the archives that failed.
func (i *Ingestor) ExtractAll(archivePaths []string) ([]string, []error) {
	var dirs []string
	var errs []error

	for _, path := range archivePaths {
		dir, err := i.Extract(path)
		if err != nil {
			zlog.Logger.Err(err).Str("archive", path).Msg("archive extraction failed")
			errs = append(errs, err)
			continue
		}
		dirs = append(dirs, dir)
	}

	return dirs, errs
}

// DiscoverImageFolders scans the given roots for directories containing
// at least one image file. A directory that holds images is reported and
// not searched below itself: only the shallowest image-bearing directory
// per branch appears in the result.
func (i *Ingestor) DiscoverImageFolders(roots []string) []string {
	var folders []string
	for _, root := range roots {
		folders = append(folders, discover(root, i.maxDepth)...)
	}

	sort.Strings(folders)
	return folders
}

func discover(dir string, depth int) []string {
	if depth < 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		zlog.Logger.Err(err).Str("dir", dir).Msg("failed to read directory during discovery")
		return nil
	}

	for _, e := range entries {
		if !e.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			return []string{dir}
		}
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			found = append(found, discover(filepath.Join(dir, e.Name()), depth-1)...)
		}
	}

	return found
}

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(images)
	return images, nil
}

// extractFile writes a single archive entry under dest, refusing paths
// that would escape it.
func extractFile(f *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.Clean(f.Name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
