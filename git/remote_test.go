package git

import (
	"context"
	"testing"

	pexec "github.com/zhubert/dispatch-core/exec"
)

func TestParseRemote(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    RepoInfo
		wantErr bool
	}{
		{"ssh with .git", "git@github.com:octocat/hello-world.git", RepoInfo{"octocat", "hello-world"}, false},
		{"ssh without .git", "git@github.com:octocat/hello-world", RepoInfo{"octocat", "hello-world"}, false},
		{"ssh enterprise host", "git@corp.github.com:team/service.git", RepoInfo{"team", "service"}, false},
		{"https with .git", "https://github.com/octocat/hello-world.git", RepoInfo{"octocat", "hello-world"}, false},
		{"https without .git", "https://github.com/octocat/hello-world", RepoInfo{"octocat", "hello-world"}, false},
		{"surrounding whitespace", "  https://github.com/octocat/hello-world.git\n", RepoInfo{"octocat", "hello-world"}, false},
		{"other host ssh", "git@gitlab.com:octocat/hello-world.git", RepoInfo{}, true},
		{"other host https", "https://gitlab.com/octocat/hello-world.git", RepoInfo{}, true},
		{"extra path segments ignored", "https://github.com/octocat/hello-world/tree/main", RepoInfo{"octocat", "hello-world"}, false},
		{"missing repo", "git@github.com:octocat", RepoInfo{}, true},
		{"empty", "", RepoInfo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemote(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRemote(%q) = %+v, want error", tt.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRemote(%q): %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("ParseRemote(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestGetRemoteOriginURL(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddExactMatch("git", []string{"remote", "get-url", "origin"}, pexec.MockResponse{
		Stdout: []byte("git@github.com:octocat/hello-world.git\n"),
	})

	svc := NewGitServiceWithExecutor(mock)
	url, err := svc.GetRemoteOriginURL(context.Background(), "/work")
	if err != nil {
		t.Fatalf("GetRemoteOriginURL: %v", err)
	}
	if url != "git@github.com:octocat/hello-world.git" {
		t.Errorf("url = %q", url)
	}
}
