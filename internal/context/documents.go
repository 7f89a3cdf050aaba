package context

import (
	"path/filepath"

	"github.com/chibi-cli/chibi/internal/safeio"
)

// UpdateReflection overwrites reflection.md, the distilled self-notes a
// context carries across compactions and restarts.
func UpdateReflection(dir, content string) error {
	return safeio.AtomicWriteText(filepath.Join(dir, reflectionFile), content)
}

// UpdateGoals overwrites goals.md.
func UpdateGoals(dir, content string) error {
	return safeio.AtomicWriteText(filepath.Join(dir, goalsFile), content)
}

// UpdateTodos overwrites todos.md.
func UpdateTodos(dir, content string) error {
	return safeio.AtomicWriteText(filepath.Join(dir, todosFile), content)
}
