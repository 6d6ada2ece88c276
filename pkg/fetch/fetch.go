// Package fetch implements C1, the source fetcher: resolving a registry
// reference (local directory, git URL, OCI reference, or zip archive) to a
// filesystem tree, with progress reporting and on-disk caching. Fetcher
// implements pkg/manifest.Loader so C3's dependency-graph walk can resolve
// each dependency's registry_path straight through the same entry point.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/schollz/progressbar/v3"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/conventionforge/forge/pkg/cache"
	"github.com/conventionforge/forge/pkg/model"
	"github.com/conventionforge/forge/pkg/specparse"
)

// Kind classifies a registry reference by scheme, the way
// pkg/manifest.isRemoteRef sniffs a dependency's registry_path.
type Kind int

const (
	KindLocal Kind = iota
	KindGit
	KindOCI
	KindZip
)

// Classify inspects ref's scheme/extension to decide how to fetch it.
func Classify(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, "git://"), strings.HasPrefix(ref, "git+ssh://"),
		strings.HasSuffix(ref, ".git"):
		return KindGit
	case strings.HasPrefix(ref, "oci://"):
		return KindOCI
	case strings.HasSuffix(ref, ".zip"):
		return KindZip
	default:
		return KindLocal
	}
}

// Options configures a Fetcher.
type Options struct {
	Cache   *cache.Cache // optional; nil disables caching
	Quiet   bool         // suppress progress bars
	Timeout time.Duration
}

// Fetcher resolves registry references to local filesystem trees and
// implements pkg/manifest.Loader.
type Fetcher struct {
	opts Options
}

// New returns a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Fetcher{opts: opts}
}

// Fetch resolves ref to a local directory, using the cache when configured.
// A local directory reference is returned unchanged (no caching needed).
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	if Classify(ref) == KindLocal {
		if _, err := os.Stat(ref); err != nil {
			return "", fmt.Errorf("local registry path %s: %w", ref, err)
		}
		return ref, nil
	}

	if f.opts.Cache != nil {
		if dir, ok := f.opts.Cache.Lookup(ref); ok {
			return dir, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	var dest string
	var err error
	switch Classify(ref) {
	case KindGit:
		dest, err = f.fetchGit(ctx, ref)
	case KindOCI:
		dest, err = f.fetchOCI(ctx, ref)
	case KindZip:
		dest, err = f.fetchZip(ctx, ref)
	default:
		return "", fmt.Errorf("unrecognised registry reference %q", ref)
	}
	if err != nil {
		return "", err
	}

	if f.opts.Cache != nil {
		if stored, storeErr := f.opts.Cache.Store(ref, dest); storeErr == nil {
			return stored, nil
		}
	}
	return dest, nil
}

// LoadManifest satisfies pkg/manifest.Loader: fetch registryPath, then parse
// its registry_manifest.yaml.
func (f *Fetcher) LoadManifest(ctx context.Context, registryPath string) (*model.Manifest, error) {
	dir, err := f.Fetch(ctx, registryPath)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", registryPath, err)
	}
	p := filepath.Join(dir, specparse.ManifestFileName)
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading manifest at %s: %w", p, err)
	}
	return specparse.ParseManifest(p, raw)
}

// fetchGit clones ref at its configured depth via the system git binary,
// the way pkg/synth/config.go's readSource shells out for http(s) sources
// rather than reimplementing a protocol client.
func (f *Fetcher) fetchGit(ctx context.Context, ref string) (string, error) {
	url, subPath, commit := splitGitRef(ref)

	dest, err := os.MkdirTemp("", "forge-git-*")
	if err != nil {
		return "", fmt.Errorf("creating clone directory: %w", err)
	}

	args := []string{"clone", "--depth", "1"}
	if commit == "" {
		args = append(args, "--quiet")
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Stdout = io.Discard
	if !f.opts.Quiet {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("git clone %s: %w", url, err)
	}

	if commit != "" {
		fetchCmd := exec.CommandContext(ctx, "git", "-C", dest, "fetch", "--depth", "1", "origin", commit)
		if err := fetchCmd.Run(); err != nil {
			os.RemoveAll(dest)
			return "", fmt.Errorf("git fetch %s: %w", commit, err)
		}
		checkoutCmd := exec.CommandContext(ctx, "git", "-C", dest, "checkout", "--quiet", commit)
		if err := checkoutCmd.Run(); err != nil {
			os.RemoveAll(dest)
			return "", fmt.Errorf("git checkout %s: %w", commit, err)
		}
	}

	if subPath != "" {
		return filepath.Join(dest, subPath), nil
	}
	return dest, nil
}

// splitGitRef splits spec.md §6's "url|url[sub-path]" convention and an
// optional "@commit" suffix on the url portion.
func splitGitRef(ref string) (url, subPath, commit string) {
	url = strings.TrimPrefix(ref, "git+ssh://")
	url = strings.TrimPrefix(url, "git://")

	if i := strings.Index(url, "["); i >= 0 {
		if j := strings.Index(url[i:], "]"); j >= 0 {
			subPath = url[i+1 : i+j]
			url = url[:i] + url[i+j+1:]
		}
	}
	if i := strings.LastIndex(url, "@"); i >= 0 {
		commit = url[i+1:]
		url = url[:i]
	}
	return url, subPath, commit
}

// fetchOCI pulls an OCI artifact reference into a local OCI-layout store via
// oras-go, grounded on pkg/pull/pull.go's Pull/pullOCILayout shape.
func (f *Fetcher) fetchOCI(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimPrefix(ref, "oci://")

	dest, err := os.MkdirTemp("", "forge-oci-*")
	if err != nil {
		return "", fmt.Errorf("creating oci store directory: %w", err)
	}

	store, err := oci.New(dest)
	if err != nil {
		return "", fmt.Errorf("creating local oci store: %w", err)
	}

	repoRef := ref
	tag := "latest"
	if i := strings.LastIndex(ref, ":"); i >= 0 && !strings.Contains(ref[i+1:], "/") {
		tag = ref[i+1:]
		repoRef = ref[:i]
	}

	repo, err := remote.NewRepository(repoRef)
	if err != nil {
		return "", fmt.Errorf("parsing oci reference %s: %w", ref, err)
	}

	bar := newProgressBar(f.opts.Quiet, -1, "pulling "+ref)
	copyOpts := oras.CopyOptions{
		CopyGraphOptions: oras.CopyGraphOptions{
			PostCopy: func(ctx context.Context, desc v1.Descriptor) error {
				bar.Add64(desc.Size)
				return nil
			},
		},
	}

	if _, err := oras.Copy(ctx, repo, tag, store, tag, copyOpts); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("pulling %s: %w", ref, err)
	}
	bar.Finish()
	return dest, nil
}

// fetchZip extracts a zip archive reference into a temp directory. ref is
// opened as a local file path; http(s) and file:// URLs are not downloaded
// or translated, so such a reference fails to open.
func (f *Fetcher) fetchZip(_ context.Context, ref string) (string, error) {
	dest, err := os.MkdirTemp("", "forge-zip-*")
	if err != nil {
		return "", fmt.Errorf("creating extraction directory: %w", err)
	}

	r, err := zip.OpenReader(ref)
	if err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("opening zip archive %s: %w", ref, err)
	}
	defer r.Close()

	bar := newProgressBar(f.opts.Quiet, int64(len(r.File)), "extracting "+filepath.Base(ref))
	for _, zf := range r.File {
		if err := extractOne(dest, zf); err != nil {
			os.RemoveAll(dest)
			return "", fmt.Errorf("extracting %s: %w", zf.Name, err)
		}
		bar.Add(1)
	}
	bar.Finish()
	return dest, nil
}

func extractOne(dest string, zf *zip.File) error {
	target := filepath.Join(dest, zf.Name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("zip entry %q escapes destination", zf.Name)
	}
	if zf.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, zf.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// newProgressBar mirrors pkg/pull/progress.go's ProgressTracker: a quiet
// caller gets a bar whose Add/Finish calls are safe no-ops rather than a
// bar that writes to stdout.
func newProgressBar(quiet bool, max int64, description string) *progressbar.ProgressBar {
	if quiet {
		return progressbar.NewOptions64(max, progressbar.OptionSetWriter(io.Discard))
	}
	return progressbar.NewOptions64(
		max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]",
		}),
	)
}
