package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/mailtx/internal/config"
	"github.com/cleared-dev/mailtx/internal/gitops"
	"github.com/cleared-dev/mailtx/internal/logger"
	"github.com/cleared-dev/mailtx/internal/normalize"
)

// ConfigFile is the project configuration, relative to the repo root.
const ConfigFile = "mailtx.yaml"

// project is an initialized mailtx repository with its settings loaded.
type project struct {
	root string
	cfg  *config.Config
	dict *normalize.Dictionary
	log  zerolog.Logger
}

func openProject(repoDir string, stderr io.Writer) (*project, error) {
	root, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfgPath := filepath.Join(root, ConfigFile)
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s not found in %s (run \"mailtx init\" first)", ConfigFile, root)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithOptions(stderr, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dictPath := cfg.Dictionary.Path
	if !filepath.IsAbs(dictPath) {
		dictPath = filepath.Join(root, dictPath)
	}
	dict, err := normalize.LoadDictionary(dictPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", dictPath).Msg("dictionary not found, using built-in entries")
		dict = normalize.NewDictionary(normalize.DefaultDictionary())
	case err != nil:
		return nil, err
	}

	return &project{root: root, cfg: cfg, dict: dict, log: log}, nil
}

func (p *project) identity() gitops.Identity {
	return gitops.Identity{Name: p.cfg.Git.AuthorName, Email: p.cfg.Git.AuthorEmail}
}

// commit records the run in git when git.auto_commit is on and the project is
// a repository. Failures are logged, never returned: the files are already written.
func (p *project) commit(message string) {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.root) {
		return
	}
	hash, err := gitops.CommitIfChanged(p.root, message, p.identity())
	if err != nil {
		p.log.Warn().Err(err).Msg("git commit failed")
		return
	}
	if hash != "" {
		p.log.Info().Str("commit", hash).Msg("committed")
	}
}
