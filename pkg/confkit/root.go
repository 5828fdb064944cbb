package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/joho/godotenv"
)

// RootEnv overrides project root discovery, e.g. for installed binaries.
const RootEnv = "MARKETLENS_ROOT"

const maxWalkDepth = 8

var dotenvOnce sync.Once

// LoadDotenvOnce loads a .env file once per process. ENV_FILE names an
// explicit file; otherwise every directory from this package up to the
// project root is tried. Existing variables win unless DOTENV_OVERLOAD=1.
// NO_DOTENV=1 disables loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = load(envFile)
		return
	}
	found := walkUp(func(dir string) bool {
		_ = load(filepath.Join(dir, ".env"))
		return isRoot(dir)
	})
	if !found {
		_ = load(".env")
	}
}

// ProjectRoot locates the repository root: RootEnv if set, else the first
// ancestor of this source file holding go.mod or .git, else the working directory.
func ProjectRoot() (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		return root, nil
	}
	var root string
	if walkUp(func(dir string) bool {
		if isRoot(dir) {
			root = dir
			return true
		}
		return false
	}) {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// ProjectPath joins the repository root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath returns ProjectPath(rel) and panics on failure.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

// walkUp visits this file's directory and its ancestors until visit returns true.
func walkUp(visit func(dir string) bool) bool {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return false
	}
	dir := filepath.Dir(file)
	for i := 0; i < maxWalkDepth; i++ {
		if visit(dir) {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return false
}

func isRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
