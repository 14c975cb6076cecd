package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cohortly-dev/tracker/pkg/config"
	"github.com/cohortly-dev/tracker/pkg/types"
)

// Forks lists all forks of a repository, oldest first.
func (c *Client) Forks(ctx context.Context, owner, repo string) ([]types.Fork, error) {
	cacheKey := fmt.Sprintf("forks:%s/%s", owner, repo)
	if cached, ok := c.cache.get(cacheKey); ok {
		if forks, ok := cached.([]types.Fork); ok {
			return forks, nil
		}
	}

	slog.Info("Fetching forks for repository", "component", "api", "owner", owner, "repo", repo)
	apiURL := fmt.Sprintf("%s/repos/%s/%s/forks?sort=oldest", c.baseURL, owner, repo)
	items, err := c.listAll(ctx, apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list forks for %s/%s: %w", owner, repo, err)
	}

	forks := make([]types.Fork, 0, len(items))
	for _, item := range items {
		var data struct {
			FullName string `json:"full_name"`
			Owner    struct {
				Login string `json:"login"`
			} `json:"owner"`
			CreatedAt string `json:"created_at"`
		}
		if err := json.Unmarshal(item, &data); err != nil {
			slog.Warn("Skipping malformed fork entry", "component", "api", "owner", owner, "repo", repo, "error", err)
			continue
		}

		fork := types.Fork{FullName: data.FullName, Owner: data.Owner.Login}
		if t, err := time.Parse(time.RFC3339, data.CreatedAt); err == nil {
			fork.CreatedAt = t
		}
		forks = append(forks, fork)
	}

	c.cache.set(cacheKey, forks)
	return forks, nil
}

// DiscoverLearners builds the learner roster: fork owners of each base repo
// whose fork was created on or after the bootcamp start date, plus manually
// registered learners, minus excluded users. Duplicate usernames keep their
// first-seen fork; manual entries win over discovered ones. The roster is
// sorted by username for deterministic iteration.
func (c *Client) DiscoverLearners(ctx context.Context, cfg *config.Config) ([]types.Learner, error) {
	seen := make(map[string]types.Learner)

	for _, manual := range cfg.ManualUsers {
		// Exclusions apply to the manual roster too.
		if cfg.ExcludedUsers[strings.ToLower(manual.Username)] {
			continue
		}
		learner := types.Learner{
			Username: manual.Username,
			ForkRepo: manual.ForkRepo,
			BaseRepo: manual.BaseRepo,
		}
		// Rostered learners without a known fork are assumed to hold a
		// same-named fork of the first base repo.
		if learner.BaseRepo == "" && len(cfg.BaseRepos) > 0 {
			learner.BaseRepo = cfg.BaseRepos[0]
		}
		if learner.ForkRepo == "" && learner.BaseRepo != "" {
			if _, repo, ok := strings.Cut(learner.BaseRepo, "/"); ok {
				learner.ForkRepo = learner.Username + "/" + repo
			}
		}
		seen[strings.ToLower(manual.Username)] = learner
	}

	for _, baseRepo := range cfg.BaseRepos {
		owner, repo, ok := strings.Cut(baseRepo, "/")
		if !ok {
			return nil, fmt.Errorf("invalid base repo %q", baseRepo)
		}

		forks, err := c.Forks(ctx, owner, repo)
		if err != nil {
			return nil, err
		}

		discovered := 0
		for _, fork := range forks {
			if fork.CreatedAt.Before(cfg.BootcampStartDate) {
				continue
			}
			key := strings.ToLower(fork.Owner)
			if cfg.ExcludedUsers[key] {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = types.Learner{
				Username: fork.Owner,
				ForkRepo: fork.FullName,
				BaseRepo: baseRepo,
			}
			discovered++
		}
		slog.Info("Discovered learners from forks",
			"component", "discovery", "base_repo", baseRepo, "forks", len(forks), "learners", discovered)
	}

	learners := make([]types.Learner, 0, len(seen))
	for _, learner := range seen {
		learners = append(learners, learner)
	}
	sort.Slice(learners, func(i, j int) bool {
		return strings.ToLower(learners[i].Username) < strings.ToLower(learners[j].Username)
	})
	return learners, nil
}
