package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/MarkoPoloResearchLab/offerfeed/internal/mapping"
	"github.com/MarkoPoloResearchLab/offerfeed/internal/model"
)

const (
	defaultAliasConfigPath = "aliases.yml"
	auditSucceededMessage  = "alias-audit OK"
	auditFailedMessage     = "alias-audit failed"
)

type auditResult struct {
	errors   []string
	warnings []string
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	configPath := defaultAliasConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	os.Exit(report(runAudit(configPath), os.Stdout, os.Stderr))
}

func report(result auditResult, stdout io.Writer, stderr io.Writer) int {
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintln(stderr, auditFailedMessage)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, auditSucceededMessage)
	return 0
}

// runAudit loads an alias table and flags configurations that would make suggestions ambiguous.
func runAudit(configPath string) auditResult {
	var result auditResult

	table, loadErr := mapping.LoadAliasTable(configPath)
	if loadErr != nil {
		result.addError("%s: %v", configPath, loadErr)
		return result
	}

	builtInFields := make(map[mapping.TargetField]struct{})
	for _, field := range mapping.DefaultAliasTable().Fields() {
		builtInFields[field] = struct{}{}
	}

	aliasOwners := make(map[string]mapping.TargetField)
	foldedAliases := make(map[string]string)
	for _, entry := range table {
		if _, builtIn := builtInFields[entry.Field]; !builtIn {
			result.addWarning("field %s is not an offer field and is ignored by the importer", entry.Field)
		}
		if len(entry.Aliases) == 0 {
			result.addWarning("field %s has no aliases and is never suggested", entry.Field)
		}

		for _, alias := range entry.Aliases {
			owner, claimed := aliasOwners[alias]
			switch {
			case claimed && owner == entry.Field:
				result.addWarning("field %s lists alias %q more than once", entry.Field, alias)
				continue
			case claimed:
				result.addWarning("alias %q is listed for both %s and %s", alias, owner, entry.Field)
				continue
			}
			aliasOwners[alias] = entry.Field

			folded := strings.ToLower(alias)
			if existing, found := foldedAliases[folded]; found && existing != alias {
				result.addWarning("aliases %q and %q differ only by case; keys are matched exactly", existing, alias)
				continue
			}
			foldedAliases[folded] = alias
		}
	}

	for _, requiredField := range model.RequiredMappingFields {
		if aliases, found := table.Aliases(requiredField); !found || len(aliases) == 0 {
			result.addError("required field %s has no aliases", requiredField)
		}
	}

	return result
}
