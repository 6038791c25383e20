package traeagent

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultRulesFile is looked up in the project root.
const DefaultRulesFile = "Project_rules.md"

// maxRulesSize bounds the rules file; larger files are ignored.
const maxRulesSize = 10000

// LoadProjectRules reads the rules file of a project. A relative rulesFile is
// resolved against projectPath. Missing, empty, oversized or out-of-project
// files yield "".
func LoadProjectRules(fs afero.Fs, projectPath, rulesFile string) string {
	if rulesFile == "" {
		rulesFile = DefaultRulesFile
	}
	full := rulesFile
	if !filepath.IsAbs(full) {
		full = filepath.Join(projectPath, rulesFile)
	}
	root := filepath.Clean(projectPath)
	full = filepath.Clean(full)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return ""
	}

	info, err := fs.Stat(full)
	if err != nil || info.IsDir() || info.Size() > maxRulesSize {
		return ""
	}
	data, err := afero.ReadFile(fs, full)
	if err != nil {
		return ""
	}
	for _, r := range string(data) {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			return ""
		}
	}
	return strings.TrimSpace(string(data))
}

// FormatRules wraps rules for the system prompt.
func FormatRules(rules string) string {
	return fmt.Sprintf("# PROJECT-SPECIFIC RULES\nThe following are project-specific rules and guidelines that you MUST follow:\n%s\n# END OF PROJECT-SPECIFIC RULES", rules)
}
