// Package analysis turns raw diffs into enrichment: it filters noise files,
// summarizes each file's patch with an LLM and synthesizes task lists.
package analysis

import (
	"regexp"

	"github.com/devtrackhq/devtrack-service/internal/github"
)

// ignoredFilePatterns matches files whose diffs are rarely meaningful work:
// lockfiles, build output, IDE metadata, env files, logs, docs, CI/CD and
// tool configuration. Filtering them keeps LLM cost and noise bounded.
var ignoredFilePatterns = []*regexp.Regexp{
	// Package management
	regexp.MustCompile(`package-lock\.json$`),
	regexp.MustCompile(`yarn\.lock$`),
	regexp.MustCompile(`pnpm-lock\.yaml$`),
	regexp.MustCompile(`go\.sum$`),
	regexp.MustCompile(`\.lock$`),

	// IDE and editor files
	regexp.MustCompile(`\.vscode/`),
	regexp.MustCompile(`\.idea/`),
	regexp.MustCompile(`\.DS_Store$`),
	regexp.MustCompile(`\.swp$`),
	regexp.MustCompile(`\.swo$`),

	// Build and cache directories
	regexp.MustCompile(`node_modules/`),
	regexp.MustCompile(`dist/`),
	regexp.MustCompile(`build/`),
	regexp.MustCompile(`\.next/`),
	regexp.MustCompile(`\.cache/`),
	regexp.MustCompile(`coverage/`),
	regexp.MustCompile(`\.nyc_output/`),

	// Environment and config files
	regexp.MustCompile(`\.env`),
	regexp.MustCompile(`\.config\.(js|ts)$`),
	regexp.MustCompile(`^config\.(js|ts)$`),

	// Log files
	regexp.MustCompile(`\.log$`),
	regexp.MustCompile(`logs/`),

	// Temporary files
	regexp.MustCompile(`\.tmp$`),
	regexp.MustCompile(`\.temp$`),
	regexp.MustCompile(`\.bak$`),

	// Documentation
	regexp.MustCompile(`docs/`),
	regexp.MustCompile(`\.md$`),

	// Git related
	regexp.MustCompile(`\.gitignore$`),
	regexp.MustCompile(`\.gitattributes$`),

	// Docker
	regexp.MustCompile(`Dockerfile$`),
	regexp.MustCompile(`docker-compose\.ya?ml$`),
	regexp.MustCompile(`\.dockerignore$`),

	// CI/CD
	regexp.MustCompile(`\.github/`),
	regexp.MustCompile(`\.gitlab/`),
	regexp.MustCompile(`\.circleci/`),
	regexp.MustCompile(`\.travis\.ya?ml$`),

	// Linter, formatter and bundler config
	regexp.MustCompile(`\.editorconfig$`),
	regexp.MustCompile(`\.prettierrc`),
	regexp.MustCompile(`\.eslintrc`),
	regexp.MustCompile(`\.babelrc$`),
	regexp.MustCompile(`tsconfig\.json$`),
	regexp.MustCompile(`(jest|webpack|rollup|babel|postcss|tailwind)\.config\.(js|ts)$`),
	regexp.MustCompile(`\.tsbuildinfo$`),
}

// ShouldIgnoreFile reports whether a path matches any noise pattern.
func ShouldIgnoreFile(filename string) bool {
	for _, pattern := range ignoredFilePatterns {
		if pattern.MatchString(filename) {
			return true
		}
	}

	return false
}

// FilterFiles removes noise files from a changed-file set. It is a pure
// function: no I/O, no failure mode, idempotent.
func FilterFiles(files []github.ChangedFile) []github.ChangedFile {
	relevant := make([]github.ChangedFile, 0, len(files))
	for _, file := range files {
		if !ShouldIgnoreFile(file.Filename) {
			relevant = append(relevant, file)
		}
	}

	return relevant
}
