// Package runinfo collects CI metadata recorded in case summaries, so a
// finding can be traced back to the pipeline run that produced it.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

const overridePrefix = "LIMBOFUZZ_CI_"

var pullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// Info describes the CI run of the fuzzer.
type Info struct {
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

// field binds an Info member to the variables it is read from. Keys are
// tried in order; the LIMBOFUZZ_CI_<override> variable wins over all.
type field struct {
	override string
	keys     []string
	get      func(*Info) *string
}

var fields = []field{
	{"PROVIDER", []string{"CI_PROVIDER"}, func(i *Info) *string { return &i.Provider }},
	{"REPOSITORY", []string{"GITHUB_REPOSITORY", "CI_PROJECT_PATH", "BUILDKITE_REPO"}, func(i *Info) *string { return &i.Repository }},
	{"BRANCH", []string{"GITHUB_HEAD_REF", "GITHUB_REF_NAME", "CI_COMMIT_REF_NAME", "BUILDKITE_BRANCH", "BRANCH_NAME", "GIT_BRANCH"}, func(i *Info) *string { return &i.Branch }},
	{"COMMIT", []string{"GITHUB_SHA", "CI_COMMIT_SHA", "BUILDKITE_COMMIT", "GIT_COMMIT"}, func(i *Info) *string { return &i.Commit }},
	{"JOB", []string{"GITHUB_JOB", "CI_JOB_NAME", "BUILDKITE_LABEL", "JOB_NAME"}, func(i *Info) *string { return &i.Job }},
	{"RUN_ID", []string{"GITHUB_RUN_ID", "CI_PIPELINE_ID", "BUILDKITE_BUILD_ID", "BUILD_ID"}, func(i *Info) *string { return &i.RunID }},
	{"PULL_REQUEST", []string{"GITHUB_PR_NUMBER", "CI_MERGE_REQUEST_IID", "BUILDKITE_PULL_REQUEST", "PR_NUMBER"}, func(i *Info) *string { return &i.PullRequest }},
	{"BUILD_URL", []string{"CI_JOB_URL", "BUILDKITE_BUILD_URL", "BUILD_URL"}, func(i *Info) *string { return &i.BuildURL }},
}

// providers maps a marker variable to the provider name it implies.
var providers = []struct {
	marker string
	name   string
}{
	{"GITHUB_ACTIONS", "github_actions"},
	{"GITLAB_CI", "gitlab_ci"},
	{"BUILDKITE", "buildkite"},
	{"JENKINS_URL", "jenkins"},
	{"CI", "generic"},
}

// FromEnv reads the CI metadata of the current process. It returns nil
// outside of CI when no override is set.
func FromEnv() *Info {
	var info Info
	for _, f := range fields {
		dst := f.get(&info)
		if v := env(overridePrefix + f.override); v != "" {
			*dst = v
			continue
		}
		*dst = envFirst(f.keys...)
	}
	if info.Provider == "" {
		for _, p := range providers {
			if v := env(p.marker); v != "" && v != "false" && v != "0" {
				info.Provider = p.name
				break
			}
		}
	}
	if info.PullRequest == "" {
		if m := pullRefPattern.FindStringSubmatch(env("GITHUB_REF")); len(m) > 1 {
			info.PullRequest = m[1]
		}
	}
	if info.BuildURL == "" && info.Provider == "github_actions" && info.Repository != "" && info.RunID != "" {
		server := env("GITHUB_SERVER_URL")
		if server == "" {
			server = "https://github.com"
		}
		info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
	}
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	if info == (Info{}) {
		return nil
	}
	if info.Provider == "" {
		info.Provider = "generic"
	}
	return &info
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if v := env(key); v != "" {
			return v
		}
	}
	return ""
}
