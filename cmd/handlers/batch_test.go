package handlers

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJobsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJobs(t *testing.T) {
	path := writeJobsFile(t, `{
		"jobs": [
			{"job_id": "job-1", "topic": "growing tomatoes", "primary_keyword": "balcony tomatoes"},
			{"job_id": "job-2", "topic": "baking sourdough", "instructions": "beginner level"}
		]
	}`)

	jobs, err := loadJobs(path)
	if err != nil {
		t.Fatalf("loadJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].JobID != "job-1" || jobs[0].PrimaryKeyword != "balcony tomatoes" {
		t.Errorf("job 1 = %+v", jobs[0])
	}
	if jobs[1].Instructions != "beginner level" {
		t.Errorf("job 2 = %+v", jobs[1])
	}
}

func TestLoadJobsBareArray(t *testing.T) {
	path := writeJobsFile(t, `[{"job_id": "job-1", "topic": "growing tomatoes"}]`)

	jobs, err := loadJobs(path)
	if err != nil {
		t.Fatalf("loadJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Topic != "growing tomatoes" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestLoadJobsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing job_id", `{"jobs": [{"topic": "growing tomatoes"}]}`},
		{"missing topic", `{"jobs": [{"job_id": "job-1"}]}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeJobsFile(t, tt.content)
			if _, err := loadJobs(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}

	if _, err := loadJobs(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
