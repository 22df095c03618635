package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matthieugras/vidctl/internal/backoff"
	"github.com/matthieugras/vidctl/internal/config"
)

// mockAuthenticator counts calls and never refreshes successfully
type mockAuthenticator struct {
	mu          sync.Mutex
	token       string
	refreshes   int
	invalidated int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, req *http.Request) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}
	return 0, nil
}

func (m *mockAuthenticator) Refresh(ctx context.Context, staleGeneration uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	return errors.New("refresh not available")
}

func (m *mockAuthenticator) Establish(accessToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = accessToken
}

func (m *mockAuthenticator) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.invalidated++
}

// createTestClient creates a client with mock HTTP transport
func createTestClient(handler func(req *http.Request) (*http.Response, error)) (*Client, *mockAuthenticator) {
	httpClient := &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   10 * time.Second,
	}
	authn := &mockAuthenticator{}
	bo := backoff.New(config.DefaultBackoffConfig())
	return NewClient(httpClient, Config{BaseURL: "http://api.test/api/v1"}, authn, bo, nil), authn
}

// makeEnvelope creates a mock API response wrapping data
func makeEnvelope(status int, data any) *http.Response {
	raw, _ := json.Marshal(data)
	body, _ := json.Marshal(Envelope[json.RawMessage]{
		StatusCode: status,
		Data:       raw,
		Success:    status < 400,
	})
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Header:     make(http.Header),
	}
}

func makeError(status int, message string) *http.Response {
	body, _ := json.Marshal(map[string]any{"statusCode": status, "message": message, "success": false})
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Header:     make(http.Header),
	}
}

func TestRef_AcceptsIDOrDocument(t *testing.T) {
	var v struct {
		A Ref[User] `json:"a"`
		B Ref[User] `json:"b"`
		C Ref[User] `json:"c"`
	}
	data := `{"a":"u1","b":{"_id":"u2","userName":"bob"},"c":null}`
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if v.A.ID != "u1" || v.A.Value != nil {
		t.Errorf("Expected bare ID u1, got %+v", v.A)
	}
	if v.B.ID != "u2" || v.B.Value == nil || v.B.Value.UserName != "bob" {
		t.Errorf("Expected populated user bob, got %+v", v.B)
	}
	if v.C.ID != "" || v.C.Value != nil {
		t.Errorf("Expected empty ref for null, got %+v", v.C)
	}

	out, err := json.Marshal(v.A)
	if err != nil || string(out) != `"u1"` {
		t.Errorf("Expected \"u1\", got %s (%v)", out, err)
	}
}

func TestListVideos_QueryAndPagedBody(t *testing.T) {
	var gotQuery string
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.RawQuery
		return makeEnvelope(200, map[string]any{
			"videos":      []map[string]any{{"_id": "v1", "title": "First", "owner": "u1"}},
			"page":        2,
			"limit":       5,
			"totalPages":  3,
			"totalVideos": 11,
		}), nil
	})

	page, err := client.ListVideos(context.Background(), ListOptions{Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotQuery != "limit=5&order=desc&page=2&sortBy=createdAt" {
		t.Errorf("Unexpected query: %s", gotQuery)
	}
	if len(page.Videos) != 1 || page.Videos[0].Title != "First" {
		t.Errorf("Unexpected videos: %+v", page.Videos)
	}
	if page.TotalPages != 3 || page.Total != 11 {
		t.Errorf("Unexpected paging: %+v", page)
	}
}

func TestTrending_AcceptsBareArray(t *testing.T) {
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/videos/trending" || req.URL.Query().Get("limit") != "20" {
			t.Errorf("Unexpected request: %s", req.URL)
		}
		return makeEnvelope(200, []map[string]any{
			{"_id": "v1", "owner": map[string]string{"_id": "u1", "userName": "alice"}},
			{"_id": "v2", "owner": "u2"},
		}), nil
	})

	videos, err := client.Trending(context.Background(), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("Expected 2 videos, got %d", len(videos))
	}
	if videos[0].Owner.Value == nil || videos[0].Owner.Value.UserName != "alice" {
		t.Errorf("Expected populated owner, got %+v", videos[0].Owner)
	}
	if videos[1].Owner.ID != "u2" {
		t.Errorf("Expected owner ID u2, got %+v", videos[1].Owner)
	}
}

func TestWalkVideos_FollowsPagesUntilLast(t *testing.T) {
	requestCount := 0
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		requestCount++
		page := req.URL.Query().Get("page")
		return makeEnvelope(200, map[string]any{
			"videos":     []map[string]any{{"_id": "v" + page}, {"_id": "w" + page}},
			"totalPages": 3,
		}), nil
	})

	var ids []string
	seen, err := client.WalkVideos(context.Background(), ListOptions{}, 0, func(p *VideoPage) bool {
		for _, v := range p.Videos {
			ids = append(ids, v.ID)
		}
		return true
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if requestCount != 3 || seen != 6 {
		t.Errorf("Expected 3 requests and 6 videos, got %d and %d", requestCount, seen)
	}
	if strings.Join(ids, ",") != "v1,w1,v2,w2,v3,w3" {
		t.Errorf("Unexpected order: %v", ids)
	}
}

func TestWalkVideos_StopsAtMaxPagesAndOnCallback(t *testing.T) {
	requestCount := 0
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		requestCount++
		return makeEnvelope(200, map[string]any{
			"videos":     []map[string]any{{"_id": "v"}},
			"totalPages": 100,
		}), nil
	})

	if _, err := client.WalkVideos(context.Background(), ListOptions{}, 2, func(*VideoPage) bool { return true }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if requestCount != 2 {
		t.Errorf("Expected 2 requests with maxPages=2, got %d", requestCount)
	}

	requestCount = 0
	if _, err := client.WalkVideos(context.Background(), ListOptions{}, 0, func(*VideoPage) bool { return false }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if requestCount != 1 {
		t.Errorf("Expected walk to stop after callback returned false, got %d requests", requestCount)
	}
}

func TestTypedEndpoint_ErrorEnvelope(t *testing.T) {
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		return makeError(404, "Video not found"), nil
	})

	_, err := client.WatchVideo(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 404 || apiErr.Message != "Video not found" || apiErr.Retryable {
		t.Errorf("Unexpected error: %+v", apiErr)
	}
}

func TestTypedEndpoint_UnauthorizedWithoutRefresh(t *testing.T) {
	requestCount := 0
	client, authn := createTestClient(func(req *http.Request) (*http.Response, error) {
		requestCount++
		return makeError(401, "Unauthorized request"), nil
	})

	_, err := client.History(context.Background())
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "refresh not available") {
		t.Errorf("Expected refresh error to surface, got %v", err)
	}
	if requestCount != 1 || authn.refreshes != 1 {
		t.Errorf("Expected 1 request and 1 refresh, got %d and %d", requestCount, authn.refreshes)
	}
}

func TestLogin_EstablishesSessionAndSkipsRefresh(t *testing.T) {
	var gotBody map[string]string
	client, authn := createTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/users/login" || req.Method != http.MethodPost {
			t.Errorf("Unexpected request: %s %s", req.Method, req.URL)
		}
		_ = json.NewDecoder(req.Body).Decode(&gotBody)
		return makeEnvelope(200, map[string]any{
			"user":        map[string]string{"_id": "u1", "userName": "alice"},
			"accessToken": "at",
		}), nil
	})

	res, err := client.Login(context.Background(), Credentials{Email: "a@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.User.UserName != "alice" || authn.token != "at" {
		t.Errorf("Expected session for alice with token at, got %+v / %q", res.User, authn.token)
	}
	if gotBody["email"] != "a@example.com" || gotBody["password"] != "pw" {
		t.Errorf("Unexpected login body: %v", gotBody)
	}

	bad, authn2 := createTestClient(func(req *http.Request) (*http.Response, error) {
		return makeError(401, "Invalid user credentials"), nil
	})
	_, err = bad.Login(context.Background(), Credentials{Email: "a@example.com", Password: "wrong"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("Expected 401 APIError, got %v", err)
	}
	if authn2.refreshes != 0 {
		t.Errorf("Login must not trigger a refresh, got %d", authn2.refreshes)
	}
}

func TestLogout_InvalidatesEvenOnFailure(t *testing.T) {
	client, authn := createTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("network down")
	})
	authn.token = "at"

	if err := client.Logout(context.Background()); err == nil {
		t.Fatal("Expected error")
	}
	if authn.invalidated != 1 || authn.token != "" {
		t.Errorf("Expected credentials dropped, got invalidated=%d token=%q", authn.invalidated, authn.token)
	}
}

func TestPlaylist_MembershipRequest(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	client, _ := createTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		_ = json.NewDecoder(req.Body).Decode(&gotBody)
		return makeEnvelope(200, map[string]any{
			"_id":    "p1",
			"name":   "Later",
			"videos": []any{"v1", map[string]string{"_id": "v2", "title": "Two"}},
		}), nil
	})

	pl, err := client.AddToPlaylist(context.Background(), "p1", "v2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotPath != "/api/v1/playlist/add-video" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if gotBody["playlistId"] != "p1" || gotBody["videoId"] != "v2" {
		t.Errorf("Unexpected body: %v", gotBody)
	}
	if len(pl.Videos) != 2 || pl.Videos[0].ID != "v1" || pl.Videos[1].Value.Title != "Two" {
		t.Errorf("Unexpected playlist videos: %+v", pl.Videos)
	}
}

func TestDecodeEnvelope_MalformedBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("<html>gateway</html>")),
		Header:     make(http.Header),
	}
	if err := decodeEnvelope(resp, &struct{}{}); err == nil {
		t.Error("Expected parse error")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"envelope message", `{"message":"nope"}`, 400, "nope"},
		{"raw text", "upstream timeout", 504, "upstream timeout"},
		{"empty body", "", 503, "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage([]byte(tt.body), tt.status); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
