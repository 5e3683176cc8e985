package sandbox

import (
	"encoding/json"
	"strconv"
)

// LanguageName constants
const (
	LanguagePython = "python"
	LanguageNode   = "node"
)

// outputDirEnv is the environment variable through which the child is told
// where to write files it wants returned to the caller.
const outputDirEnv = "OUTPUT_DIR"

// languageSpec describes how to stage and launch one supported language.
// The script extension and interpreter are selected strictly from this
// table, never from request text.
type languageSpec struct {
	name           string
	extension      string
	defaultCommand string
	prelude        func(outputDir string) string
}

// languages is the engine's fixed supported set.
var languages = map[string]*languageSpec{
	LanguagePython: {
		name:           LanguagePython,
		extension:      ".py",
		defaultCommand: "python3",
		prelude:        pythonPrelude,
	},
	LanguageNode: {
		name:           LanguageNode,
		extension:      ".js",
		defaultCommand: "node",
		prelude:        nodePrelude,
	},
}

// pythonPrelude publishes the output directory through os.environ. The
// path is embedded as a quoted string literal so it cannot terminate the
// expression. The launcher also sets OUTPUT_DIR in the child environment.
func pythonPrelude(outputDir string) string {
	return "import os; os.environ[\"" + outputDirEnv + "\"] = " + strconv.Quote(outputDir) + "\n"
}

func nodePrelude(outputDir string) string {
	quoted, err := json.Marshal(outputDir)
	if err != nil {
		// json.Marshal of a string cannot fail
		quoted = []byte(`""`)
	}
	return "process.env." + outputDirEnv + " = " + string(quoted) + ";\n"
}
