package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/I-Bumblebee/jobs-ge-scraper/models"
)

const (
	descriptionsDir = "descriptions"
	tempDir         = "temp"
	jobsFile        = "jobs.json"
)

// FileBlobStore writes descriptions to
// <root>/descriptions/job-description-<platform>-<id>.html and returns the
// path relative to root.
type FileBlobStore struct {
	root string
}

// NewFileBlobStore creates the descriptions directory under root.
func NewFileBlobStore(root string) (*FileBlobStore, error) {
	if err := os.MkdirAll(filepath.Join(root, descriptionsDir), 0755); err != nil {
		return nil, fmt.Errorf("blobs: create dir: %w", err)
	}
	return &FileBlobStore{root: root}, nil
}

func (s *FileBlobStore) Put(_ context.Context, platform models.Platform, id, text string) (string, error) {
	name := fmt.Sprintf("job-description-%s-%s.html", safeName(string(platform)), safeName(id))
	ref := filepath.Join(descriptionsDir, name)
	if err := writeFileAtomic(filepath.Join(s.root, ref), []byte(text)); err != nil {
		return "", fmt.Errorf("blobs: write %s: %w", ref, err)
	}
	return ref, nil
}

// JSONWriter stores each merged job as temp/job-<platform>-<id>.json while the run is
// going and folds them into jobs.json on Finalize. Records already in
// jobs.json are replaced by id, so re-running over the same jobs leaves one
// record per job.
type JSONWriter struct {
	root    string
	mu      sync.Mutex
	written atomic.Int64
}

// NewJSONWriter prepares root for output.
func NewJSONWriter(root string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Join(root, tempDir), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{root: root}, nil
}

func (w *JSONWriter) Name() string { return "json" }

func (w *JSONWriter) SaveMerged(_ context.Context, job *models.MergedJob) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode job %s: %w", job.ID, err)
	}
	name := fmt.Sprintf("job-%s-%s.json", job.Platform, safeName(job.ID))
	if err := writeFileAtomic(filepath.Join(w.root, tempDir, name), data); err != nil {
		return fmt.Errorf("json: write job %s: %w", job.ID, err)
	}
	w.written.Add(1)
	return nil
}

// Finalize merges temp records into jobs.json and removes the temp dir. It
// is safe to call again after a partial failure.
func (w *JSONWriter) Finalize(_ context.Context) (*models.SinkSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := filepath.Join(w.root, jobsFile)
	jobs, err := readJobs(out)
	if err != nil {
		return nil, err
	}

	tmp := filepath.Join(w.root, tempDir)
	entries, err := os.ReadDir(tmp)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("json: read temp dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmp, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("json: read %s: %w", e.Name(), err)
		}
		var job models.MergedJob
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("json: decode %s: %w", e.Name(), err)
		}
		jobs[jobKey(job.Platform, job.ID)] = &job
	}

	list := make([]*models.MergedJob, 0, len(jobs))
	for _, j := range jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Platform != list[j].Platform {
			return list[i].Platform < list[j].Platform
		}
		return list[i].ID < list[j].ID
	})

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json: encode %s: %w", jobsFile, err)
	}
	if err := writeFileAtomic(out, data); err != nil {
		return nil, fmt.Errorf("json: write %s: %w", jobsFile, err)
	}
	if err := os.RemoveAll(tmp); err != nil {
		return nil, fmt.Errorf("json: clean temp dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, fmt.Errorf("json: recreate temp dir: %w", err)
	}

	return &models.SinkSummary{Name: w.Name(), Written: int(w.written.Swap(0)), Location: out}, nil
}

func (w *JSONWriter) Close() error { return nil }

func readJobs(path string) (map[string]*models.MergedJob, error) {
	jobs := make(map[string]*models.MergedJob)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return jobs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("json: read %s: %w", path, err)
	}
	var list []*models.MergedJob
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("json: decode %s: %w", path, err)
	}
	for _, j := range list {
		jobs[jobKey(j.Platform, j.ID)] = j
	}
	return jobs, nil
}

func jobKey(p models.Platform, id string) string {
	return string(p) + ":" + id
}

// writeFileAtomic writes through a temp file and rename so readers never
// see a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

// safeName keeps ids usable as file names.
func safeName(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '.', ' ':
			out[i] = '_'
		}
	}
	return string(out)
}
