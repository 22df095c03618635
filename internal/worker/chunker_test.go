package worker

import (
	"net/http"
	"testing"

	"github.com/matthieugras/vidctl/internal/api"
)

func TestExpandPages_QueryParameter(t *testing.T) {
	jobs, err := ExpandPages("/videos?limit=5&sortBy=views", 2, 4, nil, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Expected 3 jobs, got %d", len(jobs))
	}

	want := []string{
		"/videos?limit=5&page=2&sortBy=views",
		"/videos?limit=5&page=3&sortBy=views",
		"/videos?limit=5&page=4&sortBy=views",
	}
	for i, job := range jobs {
		if job.Path != want[i] {
			t.Errorf("Job %d: expected path %s, got %s", i, want[i], job.Path)
		}
		if job.ID != 10+i {
			t.Errorf("Job %d: expected ID %d, got %d", i, 10+i, job.ID)
		}
	}
	if jobs[0].PageInfo.PageLabel() != "2/4" {
		t.Errorf("Expected label 2/4, got %s", jobs[0].PageInfo.PageLabel())
	}
}

func TestExpandPages_Placeholder(t *testing.T) {
	jobs, err := ExpandPages("/users/channel/alice/{page}", 1, 2, nil, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if jobs[0].Path != "/users/channel/alice/1" || jobs[1].Path != "/users/channel/alice/2" {
		t.Errorf("Unexpected paths: %s, %s", jobs[0].Path, jobs[1].Path)
	}
}

func TestExpandPages_InvertedRange(t *testing.T) {
	if n := CalculatePageCount(5, 1); n != 1 {
		t.Errorf("Expected 1 page for inverted range, got %d", n)
	}
	if n := CalculatePageCount(0, 3); n != 3 {
		t.Errorf("Expected pages to start at 1, got %d", n)
	}
}

func TestExpandPages_BadQuery(t *testing.T) {
	if _, err := ExpandPages("/videos?%zz", 1, 2, nil, 0); err == nil {
		t.Error("Expected error for malformed query")
	}
}

func TestBuildJobs(t *testing.T) {
	opts := &api.RequestOptions{Method: http.MethodPost}
	jobs := BuildJobs([]string{"/videos", "", "  # comment", " /users/history "}, opts, 1)

	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[1].Path != "/users/history" || jobs[1].ID != 2 {
		t.Errorf("Unexpected job: %+v", jobs[1])
	}
	if jobs[0].Method() != http.MethodPost {
		t.Errorf("Expected POST, got %s", jobs[0].Method())
	}
	if (&Job{}).Method() != http.MethodGet {
		t.Error("Expected GET default")
	}
}
