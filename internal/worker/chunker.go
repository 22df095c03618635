package worker

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/matthieugras/vidctl/internal/api"
)

// PagePlaceholder is replaced by the page number in a page template
const PagePlaceholder = "{page}"

// splitPageRange returns the pages from..to inclusive.
// If to < from, returns just from.
func splitPageRange(from, to int) []int {
	if from < 1 {
		from = 1
	}
	if to < from {
		return []int{from}
	}
	pages := make([]int, 0, to-from+1)
	for p := from; p <= to; p++ {
		pages = append(pages, p)
	}
	return pages
}

// ExpandPages turns a paged path into one job per page.
// The template either contains {page} or gets a page query parameter set.
func ExpandPages(template string, from, to int, opts *api.RequestOptions, startJobID int) ([]Job, error) {
	pages := splitPageRange(from, to)

	jobs := make([]Job, 0, len(pages))
	for i, page := range pages {
		path, err := pagePath(template, page)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, Job{
			ID:       startJobID + i,
			Path:     path,
			Options:  opts,
			PageInfo: &PageInfo{Page: page, TotalPages: pages[len(pages)-1]},
		})
	}
	return jobs, nil
}

func pagePath(template string, page int) (string, error) {
	if strings.Contains(template, PagePlaceholder) {
		return strings.ReplaceAll(template, PagePlaceholder, strconv.Itoa(page)), nil
	}

	base, query, _ := strings.Cut(template, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("invalid query in %q: %w", template, err)
	}
	values.Set("page", strconv.Itoa(page))
	return base + "?" + values.Encode(), nil
}

// BuildJobs creates one job per path, skipping blank lines and # comments
func BuildJobs(paths []string, opts *api.RequestOptions, startJobID int) []Job {
	jobs := make([]Job, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		jobs = append(jobs, Job{ID: startJobID + len(jobs), Path: p, Options: opts})
	}
	return jobs
}

// CalculatePageCount returns the number of jobs ExpandPages would create
func CalculatePageCount(from, to int) int {
	return len(splitPageRange(from, to))
}
